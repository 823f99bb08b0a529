// Package debug contains the optional utilities available when the server is
// run with debugging options enabled.
package debug

import (
	"fmt"
	"net/http"
	_ "net/http/pprof"

	"github.com/davecgh/go-spew/spew"
	"github.com/sirupsen/logrus"

	"github.com/manuelpont94/irc/internal/protocol"
)

// StartPprofServer starts the default pprof HTTP server that can be accessed
// via localhost to get runtime information about the server.
// See https://golang.org/pkg/net/http/pprof/
func StartPprofServer(logger *logrus.Logger, port int) {
	listenerAddr := fmt.Sprintf("localhost:%d", port)
	logger.Infof("starting pprof server on %s", listenerAddr)

	go func() {
		if err := http.ListenAndServe(listenerAddr, nil); err != nil {
			logger.Infof("error starting pprof server: %s", err)
		}
	}()
}

// DumpLine writes the parsed form of one client line to the debug log when
// line logging is enabled.
func DumpLine(logger *logrus.Logger, addr string, m protocol.Message) {
	logger.Debugf("line from %s: %s", addr, spew.Sdump(m))
}
