// Package decorator has the message decorators the transport runtime itself
// reads and writes: ~thread for reply correlation and ~transport for return
// route requests. Protocol level decorators stay in protocol packages.
package decorator

// Thread is the ~thread decorator.
type Thread struct {
	ID  string `json:"thid,omitempty"`
	PID string `json:"pthid,omitempty"`
}

// Transport is the ~transport decorator carrying the return route request.
type Transport struct {
	ReturnRoute string `json:"return_route,omitempty"`
}

func NewThread(ID, PID string) *Thread {
	realPID := ""
	if ID != PID {
		realPID = PID
	}
	return &Thread{ID: ID, PID: realPID}
}

// CheckThread guarantees a usable thread decorator: nil or empty input gets
// the message's own id as the thread id.
func CheckThread(thread *Thread, ID string) *Thread {
	if thread == nil {
		return &Thread{ID: ID}
	}
	if thread.ID == "" {
		thread.ID = ID
	}
	return thread
}
