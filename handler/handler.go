package handler

import (
	"github.com/sirupsen/logrus"

	"myhttpd/logging"
)

var log *logrus.Logger

func init() {
	log = logging.GetLogger()
}
