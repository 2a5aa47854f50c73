package queue

import (
	"fmt"
	"net"
	"strings"
	"time"

	"myhttpd/logging"
)

var log = logging.GetLogger()

// Request is one accepted connection's parsed request line plus its arrival
// metadata. It is never modified after it has been pushed.
type Request struct {
	Conn      net.Conn
	RemoteIP  string
	Method    string
	URI       string
	Version   string
	ArrivedAt time.Time

	// Seq is the accept order assigned by the listener. It ranks the request
	// under FCFS and breaks SJF ties, so a client that is slow to send its
	// request line keeps its place. Zero falls back to push order.
	Seq uint64

	// Malformed is set when the request line could not be parsed.
	Malformed bool

	// ResolvedPath and Size come from path resolution at admission time.
	// Size is the SJF sort key and is 0 when the target does not resolve.
	ResolvedPath string
	Size         int64
}

// Policy selects which queued request is dispatched next.
type Policy int

const (
	FCFS Policy = iota
	SJF
)

func (p Policy) String() string {
	switch p {
	case FCFS:
		return "FCFS"
	case SJF:
		return "SJF"
	default:
		return fmt.Sprintf("Policy(%d)", int(p))
	}
}

// ParsePolicy accepts "FCFS" or "SJF", case-insensitively.
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "FCFS":
		return FCFS, nil
	case "SJF":
		return SJF, nil
	default:
		return 0, fmt.Errorf("unknown scheduling policy %q", s)
	}
}

// Overflow decides what Push does when a bounded queue is full.
type Overflow int

const (
	OverflowReject Overflow = iota
	OverflowBlock
)

func (o Overflow) String() string {
	switch o {
	case OverflowReject:
		return "reject"
	case OverflowBlock:
		return "block"
	default:
		return fmt.Sprintf("Overflow(%d)", int(o))
	}
}

// ParseOverflow accepts "reject" or "block".
func ParseOverflow(s string) (Overflow, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "reject", "":
		return OverflowReject, nil
	case "block":
		return OverflowBlock, nil
	default:
		return 0, fmt.Errorf("unknown queue overflow policy %q", s)
	}
}

// Options configures a RequestQueue. A zero Capacity means unbounded.
type Options struct {
	Policy   Policy
	Capacity int
	Overflow Overflow
}
