//go:build !linux

package reactor

import "time"

type stubPoller struct{}

func (stubPoller) poll(int, *[]*Channel) (time.Time, error) { return time.Time{}, ErrUnsupportedPlatform }
func (stubPoller) updateChannel(*Channel)                   {}
func (stubPoller) removeChannel(*Channel)                   {}
func (stubPoller) hasChannel(*Channel) bool                 { return false }
func (stubPoller) close() error                             { return ErrUnsupportedPlatform }

func newDefaultPoller() (poller, error) { return stubPoller{}, ErrUnsupportedPlatform }
