package model

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrEmptyTarget       = errors.New("target is empty")
	ErrInvalidTargetType = errors.New("invalid target type")
	ErrInvalidScanType   = errors.New("invalid scan type")
)

// TargetType says what kind of thing a scan is about.
type TargetType string

const (
	TargetDomain TargetType = "domain"
	TargetPerson TargetType = "person"
)

// TargetTypes lists every supported target type.
func TargetTypes() []TargetType { return []TargetType{TargetDomain, TargetPerson} }

// ParseTargetType accepts any casing. An empty string defaults to domain.
func ParseTargetType(s string) (TargetType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", string(TargetDomain):
		return TargetDomain, nil
	case string(TargetPerson):
		return TargetPerson, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidTargetType, s)
	}
}

func (t TargetType) Valid() bool {
	return t == TargetDomain || t == TargetPerson
}

// ScanType selects which modules run when none are named explicitly.
type ScanType string

const (
	ScanQuick  ScanType = "quick"
	ScanFull   ScanType = "full"
	ScanCustom ScanType = "custom"
)

// ParseScanType accepts any casing. An empty string defaults to full.
func ParseScanType(s string) (ScanType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", string(ScanFull):
		return ScanFull, nil
	case string(ScanQuick):
		return ScanQuick, nil
	case string(ScanCustom):
		return ScanCustom, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidScanType, s)
	}
}
