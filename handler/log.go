package handler

import (
	"fmt"
	"time"

	"myhttpd/queue"
)

const accessTimeFormat = "02/Jan/2006:15:04:05 -0700"

// AccessLogger receives one formatted line per completed request.
type AccessLogger interface {
	Log(line string)
}

// FormatAccessLine renders the access-log line for a completed request.
func FormatAccessLine(req *queue.Request, status Status, bodyLen int, completedAt time.Time) string {
	return fmt.Sprintf("%s ~ [%s] [%s] \"%s %s %s\" %d %d",
		req.RemoteIP,
		req.ArrivedAt.Local().Format(accessTimeFormat),
		completedAt.Local().Format(accessTimeFormat),
		req.Method, req.URI, req.Version,
		int(status), bodyLen)
}

func logPipelineError(req *queue.Request, err error) {
	switch StatusFor(err) {
	case StatusNotFound:
		log.Debugf("%s -- %s %s -- %v", req.RemoteIP, req.Method, req.URI, err)
	default:
		log.Debugf("%s -- %s %s -- bad request: %v", req.RemoteIP, req.Method, req.URI, err)
	}
}
