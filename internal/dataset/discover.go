package dataset

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"regexp"
	"sort"
)

var recordingRegexp = regexp.MustCompile(`^S[0-9]{3}R[0-9]{2}\.edf$`)

// DiscoverRecordings returns paths to EEGBCI EDF files beneath root, sorted.
func DiscoverRecordings(root string) ([]string, error) {
	entries := make([]string, 0)
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if recordingRegexp.MatchString(d.Name()) {
			entries = append(entries, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("discover recordings: %w", err)
	}
	sort.Strings(entries)
	return entries, nil
}

// ParseRecordingName extracts subject and run from a name like "S001R04.edf".
func ParseRecordingName(name string) (subject, run int, ok bool) {
	base := filepath.Base(name)
	if !recordingRegexp.MatchString(base) {
		return 0, 0, false
	}
	if _, err := fmt.Sscanf(base, "S%03dR%02d.edf", &subject, &run); err != nil {
		return 0, 0, false
	}
	return subject, run, true
}
