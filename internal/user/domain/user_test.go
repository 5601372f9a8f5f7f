package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProfile_DisplayName(t *testing.T) {
	tests := []struct {
		name    string
		profile Profile
		want    string
		wantOK  bool
	}{
		{"first and last", Profile{FirstName: "Asha", LastName: "Rao"}, "Asha Rao", true},
		{"first only", Profile{FirstName: "Asha"}, "Asha", true},
		{"last only", Profile{LastName: "Rao"}, "", false},
		{"none", Profile{}, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tt.profile.DisplayName()
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantOK, ok)
		})
	}
}

func TestProfile_Normalize(t *testing.T) {
	p := Profile{FirstName: "  Asha ", City: "\tPune\n", ParentEmail: "   "}
	p.Normalize()
	assert.Equal(t, "Asha", p.FirstName)
	assert.Equal(t, "Pune", p.City)
	assert.Equal(t, "", p.ParentEmail)
}

func TestOnboarding_Normalize(t *testing.T) {
	o := Onboarding{FirstName: " Asha ", Courses: []string{"math-6", " ", "science-6", "math-6 "}}
	o.Normalize()
	assert.Equal(t, "Asha", o.FirstName)
	assert.Equal(t, []string{"math-6", "science-6"}, o.Courses)
}
