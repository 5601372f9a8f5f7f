package domain

import (
	"strings"
	"time"
)

// User is a student account. Profile fields are empty until onboarding.
type User struct {
	ID              string
	Email           string
	EmailVerifiedAt *time.Time
	Name            string
	Image           string
	FirstName       string
	LastName        string
	City            string
	State           string
	Grade           string
	ParentName      string
	ParentMobile    string
	ParentEmail     string
	Courses         []string
	AITutor         string
	Onboarded       bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Onboarding is the wizard's final submission.
type Onboarding struct {
	FirstName    string
	LastName     string
	City         string
	State        string
	ParentName   string
	ParentMobile string
	ParentEmail  string
	Grade        string
	Courses      []string
	AITutor      string
}

// Normalize trims every text field and drops blank or duplicate course ids.
func (o *Onboarding) Normalize() {
	for _, f := range []*string{&o.FirstName, &o.LastName, &o.City, &o.State, &o.ParentName, &o.ParentMobile, &o.ParentEmail, &o.Grade, &o.AITutor} {
		*f = strings.TrimSpace(*f)
	}
	seen := make(map[string]struct{}, len(o.Courses))
	courses := make([]string, 0, len(o.Courses))
	for _, c := range o.Courses {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		courses = append(courses, c)
	}
	o.Courses = courses
}

// Profile is an edit from the settings page. Blank fields clear the stored value.
type Profile struct {
	FirstName    string
	LastName     string
	City         string
	State        string
	Grade        string
	ParentName   string
	ParentMobile string
	ParentEmail  string
}

// Normalize trims every field.
func (p *Profile) Normalize() {
	for _, f := range []*string{&p.FirstName, &p.LastName, &p.City, &p.State, &p.Grade, &p.ParentName, &p.ParentMobile, &p.ParentEmail} {
		*f = strings.TrimSpace(*f)
	}
}

// DisplayName returns the name to store alongside the profile: "first last", or first alone.
// ok is false when no first name was given and the stored name should be left unchanged.
func (p Profile) DisplayName() (name string, ok bool) {
	switch {
	case p.FirstName != "" && p.LastName != "":
		return p.FirstName + " " + p.LastName, true
	case p.FirstName != "":
		return p.FirstName, true
	default:
		return "", false
	}
}

// OAuthProfile is what an external identity provider asserts about a user.
type OAuthProfile struct {
	Email         string
	EmailVerified bool
	Name          string
	Picture       string
}
