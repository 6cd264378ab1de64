package client

import (
	"errors"
	"fmt"
)

// State của một phiên làm bài trên terminal
type State string

const (
	StateIdle       State = "idle"
	StateLoading    State = "loading"
	StateInProgress State = "in_progress"
	StateSubmitting State = "submitting"
	StateResults    State = "results"
	StateError      State = "error"
)

type EventType string

const (
	EventLoad         EventType = "load"
	EventLoaded       EventType = "loaded"
	EventLoadFailed   EventType = "load_failed"
	EventSubmit       EventType = "submit"  // người dùng nộp bài
	EventTimeout      EventType = "timeout" // đồng hồ về 0, nộp tự động
	EventSubmitted    EventType = "submitted"
	EventSubmitFailed EventType = "submit_failed"
	EventReset        EventType = "reset"
)

type Event struct {
	Type EventType
	Err  error
}

var ErrInvalidTransition = errors.New("invalid transition")

var transitions = map[State]map[EventType]State{
	StateIdle: {
		EventLoad: StateLoading,
	},
	StateLoading: {
		EventLoaded:     StateInProgress,
		EventLoadFailed: StateError,
	},
	StateInProgress: {
		EventSubmit:  StateSubmitting,
		EventTimeout: StateSubmitting,
	},
	StateSubmitting: {
		EventSubmitted:    StateResults,
		EventSubmitFailed: StateError,
	},
	StateResults: {
		EventReset: StateIdle,
	},
	StateError: {
		EventReset: StateIdle,
	},
}

// Transition là hàm thuần: không I/O, side effect chạy ở App khi vào state mới
func Transition(s State, e Event) (State, error) {
	next, ok := transitions[s][e.Type]
	if !ok {
		return s, fmt.Errorf("%s --%s--> ?: %w", s, e.Type, ErrInvalidTransition)
	}
	return next, nil
}

// Terminal: không còn sự kiện nào của phiên hiện tại ngoài reset
func (s State) Terminal() bool {
	return s == StateResults || s == StateError
}
