//go:build windows

package store

import "github.com/sirupsen/logrus"

// acquireLock is a no-op on Windows; concurrent invocations are not coordinated there.
func acquireLock(path string, log logrus.FieldLogger) (func() error, error) {
	log.WithField("path", path).Debug("advisory locking unsupported on windows")
	return func() error { return nil }, nil
}
