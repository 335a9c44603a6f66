package model

import (
	"errors"
	"fmt"
	"time"
)

var ErrInvalidTransition = errors.New("invalid scan status transition")

// ScanStatus is the lifecycle state of a scan.
type ScanStatus string

const (
	ScanPending   ScanStatus = "pending"
	ScanRunning   ScanStatus = "running"
	ScanCompleted ScanStatus = "completed"
	ScanFailed    ScanStatus = "failed"
)

func (s ScanStatus) IsTerminal() bool {
	return s == ScanCompleted || s == ScanFailed
}

// ScanRequest is the inbound shape of a scan, before validation.
type ScanRequest struct {
	Target     string            `json:"target" yaml:"target"`
	TargetType string            `json:"target_type,omitempty" yaml:"target_type,omitempty"`
	ScanType   string            `json:"scan_type,omitempty" yaml:"scan_type,omitempty"`
	Modules    []string          `json:"modules,omitempty" yaml:"modules,omitempty"`
	Params     map[string]string `json:"params,omitempty" yaml:"params,omitempty"`
}

// Scan is one run of the engine against a target. Status only moves forward
// through Start, Complete and Fail.
type Scan struct {
	ID               string            `json:"id" yaml:"id"`
	Target           string            `json:"target" yaml:"target"`
	TargetType       TargetType        `json:"target_type" yaml:"target_type"`
	ScanType         ScanType          `json:"scan_type" yaml:"scan_type"`
	RequestedModules []string          `json:"requested_modules" yaml:"requested_modules"`
	Params           map[string]string `json:"params,omitempty" yaml:"params,omitempty"`
	Status           ScanStatus        `json:"status" yaml:"status"`
	CreatedAt        time.Time         `json:"created_at" yaml:"created_at"`
	StartedAt        *time.Time        `json:"started_at,omitempty" yaml:"started_at,omitempty"`
	CompletedAt      *time.Time        `json:"completed_at,omitempty" yaml:"completed_at,omitempty"`
	Result           *ScanResult       `json:"result,omitempty" yaml:"-"`
	Analysis         *AnalysisResult   `json:"analysis,omitempty" yaml:"analysis,omitempty"`
	AnalysisError    string            `json:"analysis_error,omitempty" yaml:"analysis_error,omitempty"`
	Error            string            `json:"error,omitempty" yaml:"error,omitempty"`
	DeadlineExceeded bool              `json:"deadline_exceeded,omitempty" yaml:"deadline_exceeded,omitempty"`
}

// NewScan returns a pending scan. The caller has already validated every field.
func NewScan(id, target string, tt TargetType, st ScanType, modules []string, params map[string]string, now time.Time) *Scan {
	return &Scan{
		ID:               id,
		Target:           target,
		TargetType:       tt,
		ScanType:         st,
		RequestedModules: append([]string(nil), modules...),
		Params:           copyParams(params),
		Status:           ScanPending,
		CreatedAt:        now,
	}
}

func (s *Scan) IsTerminal() bool { return s.Status.IsTerminal() }

func (s *Scan) Start(now time.Time) error {
	if s.Status != ScanPending {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s.Status, ScanRunning)
	}
	s.Status = ScanRunning
	s.StartedAt = &now
	return nil
}

// Complete moves a running scan to completed and attaches its result.
func (s *Scan) Complete(result *ScanResult, now time.Time) error {
	if s.Status != ScanRunning {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s.Status, ScanCompleted)
	}
	s.Status = ScanCompleted
	s.Result = result
	s.CompletedAt = &now
	return nil
}

// Fail is legal from pending or running.
func (s *Scan) Fail(cause string, now time.Time) error {
	if s.IsTerminal() {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s.Status, ScanFailed)
	}
	s.Status = ScanFailed
	s.Error = cause
	s.CompletedAt = &now
	return nil
}

// Clone returns a copy that shares no mutable slices or maps with s.
// Result and Analysis are shared: they are never mutated after attachment.
func (s *Scan) Clone() *Scan {
	c := *s
	c.RequestedModules = append([]string(nil), s.RequestedModules...)
	c.Params = copyParams(s.Params)
	if s.StartedAt != nil {
		t := *s.StartedAt
		c.StartedAt = &t
	}
	if s.CompletedAt != nil {
		t := *s.CompletedAt
		c.CompletedAt = &t
	}
	return &c
}

func copyParams(p map[string]string) map[string]string {
	if p == nil {
		return nil
	}
	out := make(map[string]string, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}
