package store

import (
	"regexp"
	"time"

	"github.com/lsh-sh/lsh/internal/job"
)

// Filter narrows List results. Every non-zero field is ANDed; a zero
// Filter returns every job.
type Filter struct {
	Status         []job.Status
	Type           []job.Type
	Tags           []string // intersection: job must carry all of these
	User           string
	NameRegex      string
	CreatedAfter   time.Time
	CreatedBefore  time.Time
	compiledRegexp *regexp.Regexp
}

func (f *Filter) compile() error {
	if f.NameRegex == "" || f.compiledRegexp != nil {
		return nil
	}
	re, err := regexp.Compile(f.NameRegex)
	if err != nil {
		return err
	}
	f.compiledRegexp = re
	return nil
}

func (f *Filter) matches(j *job.Job) bool {
	if len(f.Status) > 0 && !statusIn(j.Status, f.Status) {
		return false
	}
	if len(f.Type) > 0 && !typeIn(j.Type, f.Type) {
		return false
	}
	if len(f.Tags) > 0 && !hasAllTags(j.Tags, f.Tags) {
		return false
	}
	if f.User != "" && j.User != f.User {
		return false
	}
	if f.compiledRegexp != nil && !f.compiledRegexp.MatchString(j.Name) {
		return false
	}
	if !f.CreatedAfter.IsZero() && !j.CreatedAt.After(f.CreatedAfter) {
		return false
	}
	if !f.CreatedBefore.IsZero() && !j.CreatedAt.Before(f.CreatedBefore) {
		return false
	}
	return true
}

func statusIn(s job.Status, set []job.Status) bool {
	for _, x := range set {
		if x == s {
			return true
		}
	}
	return false
}

func typeIn(t job.Type, set []job.Type) bool {
	for _, x := range set {
		if x == t {
			return true
		}
	}
	return false
}

func hasAllTags(have, want []string) bool {
	set := make(map[string]bool, len(have))
	for _, t := range have {
		set[t] = true
	}
	for _, t := range want {
		if !set[t] {
			return false
		}
	}
	return true
}
