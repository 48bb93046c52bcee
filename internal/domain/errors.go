package domain

import "errors"

var (
	// ErrInvalidIdentity is returned when a wallet address fails validation.
	ErrInvalidIdentity = errors.New("invalid wallet address")
	// ErrQuizNotFound indicates the quiz content could not be loaded.
	ErrQuizNotFound = errors.New("quiz not found")
	// ErrRoomClosed is returned when acting on a room whose actor has stopped.
	ErrRoomClosed = errors.New("room closed")
	// ErrRoomFull is returned when a join would exceed the room capacity.
	ErrRoomFull = errors.New("room is full")
	// ErrAlreadyJoined rejects a second connection for the same wallet in a room.
	ErrAlreadyJoined = errors.New("wallet already joined this room")
	// ErrParticipantNotFound is returned when a user acts before joining.
	ErrParticipantNotFound = errors.New("participant not found in room")
	// ErrNotAdmin rejects admin-only actions from non-admin participants.
	ErrNotAdmin = errors.New("admin privileges required")
	// ErrInvalidTransition rejects a lifecycle action in the wrong phase.
	ErrInvalidTransition = errors.New("invalid room state transition")
	// ErrInsufficientParticipants rejects a game start below quorum.
	ErrInsufficientParticipants = errors.New("not enough participants to start")
	// ErrTimerActive is returned when a room timer is started while one runs.
	ErrTimerActive = errors.New("timer already active for room")
	// ErrQuestionNotFound indicates a submitted question ID is not the open one.
	ErrQuestionNotFound = errors.New("question not found")
	// ErrOptionNotFound indicates a submitted option ID is invalid.
	ErrOptionNotFound = errors.New("option not found")
	// ErrLateSubmission rejects answers after the question window closed.
	ErrLateSubmission = errors.New("question window closed")
	// ErrDuplicateSubmission rejects a second answer for the same question.
	ErrDuplicateSubmission = errors.New("answer already submitted")
)
