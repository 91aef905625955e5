package core

// flow.go holds the import flow state machine.
//
//	Idle -> FileSelected -> {HeaderValid | HeaderInvalid | ParseError}
//	HeaderValid -> Submitting -> {Succeeded | Failed}
//
// Selecting or clearing a file from any state starts a new generation and
// drops the previous preview and report. Responses carry the generation
// they were issued for; a response from an older generation is discarded.
// Reduce is pure; side effects are requested through SubmitCommand.

// FlowState names a state of the import flow.
type FlowState string

const (
	StateIdle          FlowState = "idle"
	StateFileSelected  FlowState = "file_selected"
	StateHeaderValid   FlowState = "header_valid"
	StateHeaderInvalid FlowState = "header_invalid"
	StateParseError    FlowState = "parse_error"
	StateSubmitting    FlowState = "submitting"
	StateSucceeded     FlowState = "succeeded"
	StateFailed        FlowState = "failed"
)

// Notices returned when a submission is refused.
const (
	NoticeNoFile      = "Please select a CSV file first."
	NoticeFixFile     = "Please fix the CSV header or file format before uploading."
	NoticeStillActive = "An upload is already in progress."
)

// Flow is the complete state of one import flow.
type Flow struct {
	State      FlowState
	Generation uint64
	File       *RawFile
	Inspection *Inspection
	// Pending is true while a submission is in flight, whatever its
	// generation.
	Pending bool
	Result  *ImportResult
	// Notice explains why the last SubmitRequested was refused.
	Notice string
}

// Event drives the flow reducer.
type Event interface {
	isEvent()
}

// FileSelected replaces the current file.
type FileSelected struct {
	File RawFile
}

// FileCleared empties the selection.
type FileCleared struct{}

// SubmitRequested asks to send the selected file.
type SubmitRequested struct{}

// ResponseReceived delivers the outcome of a submission.
type ResponseReceived struct {
	Generation uint64
	Result     ImportResult
}

func (FileSelected) isEvent()     {}
func (FileCleared) isEvent()      {}
func (SubmitRequested) isEvent()  {}
func (ResponseReceived) isEvent() {}

// SubmitCommand instructs the caller to send File and report back with a
// ResponseReceived carrying the same Generation.
type SubmitCommand struct {
	Generation uint64
	File       RawFile
}

// Reduce applies ev to f and returns the next flow plus an optional command.
func Reduce(f Flow, ev Event) (Flow, *SubmitCommand) {
	switch e := ev.(type) {
	case FileSelected:
		return selectFile(f, e.File), nil

	case FileCleared:
		return Flow{
			State:      StateIdle,
			Generation: f.Generation + 1,
			Pending:    f.Pending,
		}, nil

	case SubmitRequested:
		return requestSubmit(f)

	case ResponseReceived:
		f.Pending = false
		if e.Generation != f.Generation || f.State != StateSubmitting {
			return f, nil
		}
		res := e.Result
		f.Result = &res
		if res.Success {
			f.State = StateSucceeded
		} else {
			f.State = StateFailed
		}
		return f, nil
	}

	return f, nil
}

func selectFile(f Flow, file RawFile) Flow {
	next := Flow{
		State:      StateFileSelected,
		Generation: f.Generation + 1,
		File:       &file,
		Pending:    f.Pending,
	}

	in := Inspect(file)
	next.Inspection = &in

	switch {
	case in.Err != nil:
		next.State = StateParseError
	case !in.Header.Valid():
		next.State = StateHeaderInvalid
	default:
		next.State = StateHeaderValid
	}
	return next
}

func requestSubmit(f Flow) (Flow, *SubmitCommand) {
	f.Notice = ""

	switch {
	case f.File == nil || f.Inspection == nil:
		f.Notice = NoticeNoFile
		return f, nil
	case f.Pending:
		f.Notice = NoticeStillActive
		return f, nil
	case !f.Inspection.HeaderValid():
		f.Notice = NoticeFixFile
		return f, nil
	}

	// Resubmitting after a finished attempt is allowed; the old report is
	// dropped.
	f.State = StateSubmitting
	f.Pending = true
	f.Result = nil
	return f, &SubmitCommand{Generation: f.Generation, File: *f.File}
}

// CanSubmit reports whether a SubmitRequested would be accepted.
func (f Flow) CanSubmit() bool {
	_, cmd := requestSubmit(f)
	return cmd != nil
}
