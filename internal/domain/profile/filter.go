package profile

import (
	"strings"
	"time"
)

// Filter keeps profiles whose full name or id contains term, ignoring case.
// An empty term returns list itself.
func Filter(list []Profile, term string) []Profile {
	term = strings.ToLower(term)
	if term == "" {
		return list
	}

	out := make([]Profile, 0, len(list))

	for _, p := range list {
		if p.FullName != nil && strings.Contains(strings.ToLower(*p.FullName), term) {
			out = append(out, p)
			continue
		}

		if strings.Contains(strings.ToLower(p.ID), term) {
			out = append(out, p)
		}
	}

	return out
}

type Stats struct {
	TotalUsers        int `json:"totalUsers"`
	AdminUsers        int `json:"adminUsers"`
	NewUsersThisMonth int `json:"newUsersThisMonth"`
}

// MonthStart is the first instant of t's calendar month in t's location.
func MonthStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
}

func ComputeStats(list []Profile, now time.Time) Stats {
	start := MonthStart(now)

	s := Stats{TotalUsers: len(list)}

	for _, p := range list {
		if p.Role == RoleAdmin {
			s.AdminUsers++
		}

		if !p.CreatedAt.Before(start) && !p.CreatedAt.After(now) {
			s.NewUsersThisMonth++
		}
	}

	return s
}
