package mptraid

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// WriteCacheMode is the administrator policy for volume write caching.
type WriteCacheMode int

const (
	// WriteCacheOff - keep the write cache disabled.
	WriteCacheOff WriteCacheMode = iota

	// WriteCacheOn - keep the write cache enabled.
	WriteCacheOn

	// WriteCacheRebuildOnly - enable the write cache only while resyncing.
	WriteCacheRebuildOnly

	// WriteCacheNoChange - leave whatever the volume has.
	WriteCacheNoChange
)

//nolint:gochecknoglobals
var writeCacheNames = []string{"off", "on", "rebuild-only", "nochange"}

func (m WriteCacheMode) String() string {
	if m >= 0 && int(m) < len(writeCacheNames) {
		return writeCacheNames[m]
	}

	return "invalid"
}

// MarshalJSON for string output rather than int
func (m WriteCacheMode) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.String())
}

// ParseWriteCacheMode accepts the names printed by String.
func ParseWriteCacheMode(s string) (WriteCacheMode, error) {
	for i, n := range writeCacheNames {
		if strings.EqualFold(s, n) {
			return WriteCacheMode(i), nil
		}
	}

	return WriteCacheNoChange, errors.Wrapf(ErrInvalidTunable, "write cache mode %q", s)
}

// ResyncRate is the administrator resync rate, 0-255 or ResyncRateNoChange.
type ResyncRate int

const (
	ResyncRateNoChange ResyncRate = -1
	ResyncRateMin      ResyncRate = 0
	ResyncRateMax      ResyncRate = 255

	// ResyncRateHigh is the lowest rate treated as high priority resync.
	ResyncRateHigh ResyncRate = 128
)

// Valid - is the rate in range.
func (r ResyncRate) Valid() bool {
	return r == ResyncRateNoChange || (r >= ResyncRateMin && r <= ResyncRateMax)
}

// HighPriority - does the rate ask for priority resync.
func (r ResyncRate) HighPriority() bool {
	return r >= ResyncRateHigh
}

func (r ResyncRate) String() string {
	if r == ResyncRateNoChange {
		return "nochange"
	}

	return strconv.Itoa(int(r))
}

// ParseResyncRate accepts "nochange" or a number.
func ParseResyncRate(s string) (ResyncRate, error) {
	if strings.EqualFold(s, "nochange") || s == "" {
		return ResyncRateNoChange, nil
	}

	n, err := strconv.Atoi(s)
	if err != nil {
		return ResyncRateNoChange, errors.Wrapf(ErrInvalidTunable, "resync rate %q", s)
	}

	r := ResyncRate(n)
	if r == ResyncRateNoChange || !r.Valid() {
		return ResyncRateNoChange, errors.Wrapf(ErrInvalidTunable, "resync rate %d out of range", n)
	}

	return r, nil
}

const (
	QueueDepthMin     = 1
	QueueDepthMax     = 255
	QueueDepthDefault = 128
)

// ValidQueueDepth - is depth usable as a volume queue depth.
func ValidQueueDepth(depth int) bool {
	return depth >= QueueDepthMin && depth <= QueueDepthMax
}
