package executor

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

var (
	// ErrInvalidArgument marks malformed caller input.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrUpstreamUnavailable marks a directory that could not be reached at all.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	// ErrNotFound marks a missing executor record.
	ErrNotFound = errors.New("executor not found")
	// ErrLocked marks an operation refused because the executor is claimed.
	ErrLocked = errors.New("executor is locked")
	// ErrAlreadyExists marks a registration that reuses an executor id.
	ErrAlreadyExists = errors.New("executor already exists")
)

const (
	// LowestVersion is used when a query has no lower bound.
	LowestVersion = 0
	// HighestVersion is used when a query has no upper bound.
	HighestVersion = math.MaxInt32
)

// ServiceDefinition is one capability range advertised at registration.
type ServiceDefinition struct {
	ServiceDefinition string `json:"serviceDefinition" yaml:"serviceDefinition"`
	MinVersion        int    `json:"minVersion" yaml:"minVersion"`
	MaxVersion        int    `json:"maxVersion" yaml:"maxVersion"`
}

// Intersects reports whether the advertised range overlaps [min, max].
func (d ServiceDefinition) Intersects(min, max int) bool {
	return d.MinVersion <= max && d.MaxVersion >= min
}

// Executor is a registered remote worker.
type Executor struct {
	ExecutorID         string              `json:"executorId"`
	Name               string              `json:"name"`
	Address            string              `json:"address"`
	Port               int                 `json:"port"`
	BasePath           string              `json:"basePath,omitempty"`
	Locked             bool                `json:"locked"`
	ServiceDefinitions []ServiceDefinition `json:"serviceDefinitions,omitempty"`
	CreatedAt          time.Time           `json:"createdAt"`
	UpdatedAt          time.Time           `json:"updatedAt"`
}

// Serves reports whether the executor advertises serviceDefinition within [min, max].
func (e *Executor) Serves(serviceDefinition string, min, max int) bool {
	for _, d := range e.ServiceDefinitions {
		if strings.EqualFold(d.ServiceDefinition, serviceDefinition) && d.Intersects(min, max) {
			return true
		}
	}
	return false
}

// Clone returns a deep copy so callers can't mutate shared directory state.
func (e *Executor) Clone() *Executor {
	if e == nil {
		return nil
	}
	out := *e
	out.ServiceDefinitions = append([]ServiceDefinition(nil), e.ServiceDefinitions...)
	return &out
}

// Query asks for executors serving a capability within an optional version window.
type Query struct {
	ServiceDefinition string `json:"serviceDefinition"`
	MinVersion        *int   `json:"minVersion,omitempty"`
	MaxVersion        *int   `json:"maxVersion,omitempty"`
}

// Bounds is a normalized, inclusive version window.
type Bounds struct {
	ServiceDefinition string
	Min               int
	Max               int
}

// Normalize fills absent bounds and validates the query.
func (q Query) Normalize() (Bounds, error) {
	def := strings.TrimSpace(q.ServiceDefinition)
	if def == "" {
		return Bounds{}, fmt.Errorf("%w: serviceDefinition is empty", ErrInvalidArgument)
	}
	b := Bounds{ServiceDefinition: def, Min: LowestVersion, Max: HighestVersion}
	if q.MinVersion != nil {
		b.Min = *q.MinVersion
	}
	if q.MaxVersion != nil {
		b.Max = *q.MaxVersion
	}
	if b.Min > b.Max {
		return Bounds{}, fmt.Errorf("%w: minVersion %d is greater than maxVersion %d", ErrInvalidArgument, b.Min, b.Max)
	}
	return b, nil
}

// Dependency is a service an executor needs in order to run a capability.
type Dependency struct {
	ServiceDefinition string `json:"serviceDefinition"`
	MinVersion        *int   `json:"minVersion,omitempty"`
	MaxVersion        *int   `json:"maxVersion,omitempty"`
}

// ServiceInfo is the live answer of an executor to a capability probe.
// It is never persisted.
type ServiceInfo struct {
	ServiceDefinition string       `json:"serviceDefinition"`
	MinVersion        int          `json:"minVersion"`
	MaxVersion        int          `json:"maxVersion"`
	Dependencies      []Dependency `json:"dependencies,omitempty"`
	Load              float64      `json:"load"`
	QueueDepth        int          `json:"queueDepth"`
}

// ClaimResult is the outcome of a directory lock attempt.
type ClaimResult int

const (
	ClaimSuccess ClaimResult = iota
	ClaimAlreadyLocked
	ClaimAbsent
)

func (r ClaimResult) String() string {
	switch r {
	case ClaimSuccess:
		return "SUCCESS"
	case ClaimAlreadyLocked:
		return "ALREADY_LOCKED"
	case ClaimAbsent:
		return "ABSENT"
	default:
		return "UNKNOWN"
	}
}

// LockEventType names a lock bit transition.
type LockEventType string

const (
	EventLocked   LockEventType = "LOCKED"
	EventReleased LockEventType = "RELEASED"
)

// LockEvent reports a committed lock transition of one executor.
type LockEvent struct {
	Type              LockEventType `json:"type"`
	ExecutorID        string        `json:"executorId"`
	ServiceDefinition string        `json:"serviceDefinition,omitempty"`
	At                time.Time     `json:"at"`
}

// EventPublisher receives lock transitions. Publish must not block.
type EventPublisher interface {
	Publish(event LockEvent)
}
