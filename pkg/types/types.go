package types

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrAttribute marks a monitor field that failed validation. All validation
// failures returned by NewMonitor wrap this sentinel.
var ErrAttribute = errors.New("invalid monitor attribute")

var (
	idPattern   = regexp.MustCompile(`^[A-Za-z0-9_-]{1,128}$`)
	hostPattern = regexp.MustCompile(`(?i)^([a-z0-9:-]+\.?)+$`)
)

// Monitor is the persistent configuration describing one endpoint to probe.
type Monitor struct {
	ID          string
	Name        string
	Endpoint    string
	Interval    int // seconds between probes, 5..300
	BodyRegexp  string
	LastTaskAt  *int64 // epoch seconds; nil until the first task is scheduled
	LastProbeAt *int64 // epoch seconds; nil until the first probe is recorded
	CreatedAt   int64
}

// NewMonitor validates and normalizes the user-supplied fields and returns a
// monitor ready for storage. An empty id is allowed; storage assigns a UUID on
// insert. The endpoint is lowercased and gets an https:// scheme prepended when
// none is present.
func NewMonitor(id, name, endpoint string, interval int, bodyRegexp string) (*Monitor, error) {
	if id != "" && !idPattern.MatchString(id) {
		return nil, fmt.Errorf("%w: monitor ID can only contain alphanumeric characters, underscores and dashes, got %q", ErrAttribute, id)
	}
	if name == "" {
		return nil, fmt.Errorf("%w: name cannot be empty", ErrAttribute)
	}
	if len(name) > 64 {
		return nil, fmt.Errorf("%w: name cannot be longer than 64 characters", ErrAttribute)
	}
	normalized, err := normalizeEndpoint(endpoint)
	if err != nil {
		return nil, err
	}
	if interval < 5 {
		return nil, fmt.Errorf("%w: interval must be at least 5 seconds", ErrAttribute)
	}
	if interval > 300 {
		return nil, fmt.Errorf("%w: interval must be at most 300 seconds", ErrAttribute)
	}
	if bodyRegexp != "" {
		if _, err := regexp.Compile(bodyRegexp); err != nil {
			return nil, fmt.Errorf("%w: invalid body regular expression", ErrAttribute)
		}
	}

	return &Monitor{
		ID:         id,
		Name:       name,
		Endpoint:   normalized,
		Interval:   interval,
		BodyRegexp: bodyRegexp,
	}, nil
}

// normalizeEndpoint prepends https:// when the scheme is missing, validates the
// URL shape and lowercases the result.
func normalizeEndpoint(endpoint string) (string, error) {
	if !strings.HasPrefix(endpoint, "http") {
		endpoint = "https://" + endpoint
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("%w: endpoint must be a valid URL, got %q", ErrAttribute, endpoint)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("%w: endpoint scheme must be http or https, got %q", ErrAttribute, endpoint)
	}
	if u.Host == "" || !hostPattern.MatchString(u.Host) {
		return "", fmt.Errorf("%w: endpoint must be a valid URL, got %q", ErrAttribute, endpoint)
	}
	return strings.ToLower(endpoint), nil
}

// NewTask returns a fresh task for the monitor's id, used by the manager when
// the monitor comes due.
func (m *Monitor) NewTask() *Task {
	return NewTask(m.ID)
}

// Due reports whether the monitor needs a new task at the given wall-clock
// second. A monitor that has never been scheduled is always due.
func (m *Monitor) Due(now int64) bool {
	if m.LastTaskAt == nil {
		return true
	}
	return now-*m.LastTaskAt >= int64(m.Interval)
}

// TaskStatus is the lifecycle state of a task.
type TaskStatus string

const (
	TaskStatusPending   TaskStatus = "pending"
	TaskStatusRunning   TaskStatus = "running"
	TaskStatusCompleted TaskStatus = "completed"
	TaskStatusAbandoned TaskStatus = "abandoned"
	TaskStatusFailed    TaskStatus = "failed"
)

// TaskStatuses lists every valid status, in lifecycle order. The storage
// backends use it to build enumerated columns.
var TaskStatuses = []TaskStatus{
	TaskStatusPending,
	TaskStatusRunning,
	TaskStatusCompleted,
	TaskStatusAbandoned,
	TaskStatusFailed,
}

// Task is a single scheduled intent to probe a monitor. At most one worker
// ever leases a given task.
type Task struct {
	ID          string
	Timestamp   int64 // epoch seconds at creation
	MonitorID   string
	Status      TaskStatus
	LockedAt    *int64
	LockedBy    *string
	CompletedAt *int64
}

// NewTask creates a PENDING task for the given monitor id.
func NewTask(monitorID string) *Task {
	return &Task{
		ID:        uuid.NewString(),
		Timestamp: time.Now().Unix(),
		MonitorID: monitorID,
		Status:    TaskStatusPending,
	}
}

// Abandon marks the task as stale; the worker never executed its probe.
func (t *Task) Abandon() {
	t.Status = TaskStatusAbandoned
	now := time.Now().Unix()
	t.CompletedAt = &now
}

// Fail marks the task as failed due to an unrecoverable processing error.
func (t *Task) Fail() {
	t.Status = TaskStatusFailed
	now := time.Now().Unix()
	t.CompletedAt = &now
}

// Stale reports whether the task's age since creation exceeds threshold at the
// given wall-clock second. Age is measured from creation, not lease time.
func (t *Task) Stale(now int64, threshold time.Duration) bool {
	return now-t.Timestamp > int64(threshold.Seconds())
}

// ProbeError classifies a probe that produced no HTTP response.
type ProbeError string

const (
	ProbeErrorTimeout         ProbeError = "timeout"
	ProbeErrorConnectionError ProbeError = "connection_error"
)

// ProbeErrors lists the valid transport failure classes.
var ProbeErrors = []ProbeError{ProbeErrorTimeout, ProbeErrorConnectionError}

// Probe is the recorded outcome of executing one task. Probes are never
// mutated after creation.
type Probe struct {
	ID            string
	Timestamp     int64
	MonitorID     string
	TaskID        string
	ResponseTime  float64 // wall-clock seconds to response or failure
	ResponseCode  *int    // nil on transport failure
	ResponseError *ProbeError
	ContentMatch  *string // first body_regexp match, nil when absent
}

// NewProbe assembles a probe outcome with a fresh id and timestamp.
func NewProbe(monitorID, taskID string, responseTime float64, responseCode *int, responseError *ProbeError, contentMatch *string) *Probe {
	return &Probe{
		ID:            uuid.NewString(),
		Timestamp:     time.Now().Unix(),
		MonitorID:     monitorID,
		TaskID:        taskID,
		ResponseTime:  responseTime,
		ResponseCode:  responseCode,
		ResponseError: responseError,
		ContentMatch:  contentMatch,
	}
}
