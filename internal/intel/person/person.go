// Package person implements the individual background intelligence module.
// It parses the name, validates the supplied state and date of birth and
// lists the public record sources worth consulting.
package person

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/raysh454/reconai/internal/model"
	"github.com/raysh454/reconai/internal/module"
)

const Name = "person"

// Params read from module.Options.
const (
	ParamState = "state"
	ParamDOB   = "dob"
)

const dobLayout = "2006-01-02"

var ErrInvalidDOB = errors.New("invalid date of birth")

type ParsedName struct {
	Full   string `json:"full"`
	First  string `json:"first,omitempty"`
	Middle string `json:"middle,omitempty"`
	Last   string `json:"last"`
	Suffix string `json:"suffix,omitempty"`
}

type Report struct {
	Name       ParsedName `json:"name"`
	State      string     `json:"state,omitempty"`
	StateName  string     `json:"state_name,omitempty"`
	StateValid bool       `json:"state_valid"`
	DOB        string     `json:"dob,omitempty"`
	Age        int        `json:"age,omitempty"`
	Sources    []Source   `json:"sources"`
}

type Module struct {
	now func() time.Time
}

func New() *Module { return &Module{now: time.Now} }

func (m *Module) Name() string { return Name }

func (m *Module) Gather(ctx context.Context, target string, _ model.TargetType, opts module.Options) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	name := ParseName(target)
	if name.Last == "" {
		return nil, fmt.Errorf("person: no name in %q", target)
	}

	r := &Report{Name: name}
	if st := strings.ToUpper(strings.TrimSpace(opts.Param(ParamState, ""))); st != "" {
		r.State = st
		r.StateName, r.StateValid = states[st]
	}
	if dob := strings.TrimSpace(opts.Param(ParamDOB, "")); dob != "" {
		born, err := time.Parse(dobLayout, dob)
		if err != nil {
			return nil, fmt.Errorf("%w: %q, want YYYY-MM-DD", ErrInvalidDOB, dob)
		}
		now := m.now()
		if born.After(now) {
			return nil, fmt.Errorf("%w: %s is in the future", ErrInvalidDOB, dob)
		}
		r.DOB = dob
		r.Age = age(born, now)
	}
	r.Sources = sources(name.Full, r.State, r.StateValid)
	return r, nil
}

// ParseName splits a whitespace separated name. One word is a last name;
// four or more words put everything after the third in Suffix.
func ParseName(full string) ParsedName {
	parts := strings.Fields(full)
	p := ParsedName{Full: strings.Join(parts, " ")}
	switch len(parts) {
	case 0:
	case 1:
		p.Last = parts[0]
	case 2:
		p.First, p.Last = parts[0], parts[1]
	case 3:
		p.First, p.Middle, p.Last = parts[0], parts[1], parts[2]
	default:
		p.First, p.Middle, p.Last = parts[0], parts[1], parts[2]
		p.Suffix = strings.Join(parts[3:], " ")
	}
	return p
}

func age(born, now time.Time) int {
	years := now.Year() - born.Year()
	if now.Month() < born.Month() || (now.Month() == born.Month() && now.Day() < born.Day()) {
		years--
	}
	return years
}
