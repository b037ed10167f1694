package shada

import (
	"fmt"
	"os"
)

// tempSuffixFirst/tempSuffixLast give the candidate order for temp file naming: `.tmp.a`
// through `.tmp.z`. Exhaustion (every suffix already taken) is a hard
// error — spec §4.8 step 5.
const tempSuffixFirst, tempSuffixLast = 'a', 'z'

// createTempFile opens the first available "<target>.tmp.X" path for
// exclusive writing, trying suffixes in order. It returns the open
// file and the path that was chosen; the caller is responsible for
// closing it and either renaming it over target or leaving it in
// place on failure.
func createTempFile(target string) (*os.File, string, error) {
	for c := byte(tempSuffixFirst); c <= tempSuffixLast; c++ {
		path := fmt.Sprintf("%s.tmp.%c", target, c)
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
		if err == nil {
			return f, path, nil
		}
		if !os.IsExist(err) {
			return nil, "", fmt.Errorf("shada: creating temp file %s: %w", path, err)
		}
	}
	return nil, "", ErrTempExhausted
}

// finishWrite renames tempPath over target once the temp file has been
// fully written and flushed. If target exists, it first checks that
// the owner-write bit of target's permissions is set; the file's owner
// is not checked. On failure the temp file is left in place for the
// caller to report and the target is untouched.
func finishWrite(tempPath, target string) error {
	if info, err := os.Stat(target); err == nil {
		if info.Mode().Perm()&0o200 == 0 {
			return fmt.Errorf("%w: %s", ErrTargetNotWritable, target)
		}
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("%w: stat %s: %v", ErrTargetNotWritable, target, err)
	}
	if err := os.Rename(tempPath, target); err != nil {
		return fmt.Errorf("%w: %v", ErrTargetNotWritable, err)
	}
	return nil
}

// discardTempFile removes a temp file after a failed or skipped write
// (e.g. the previous file was not ShaDa, so the rename step is
// skipped entirely and the half-written temp is useless).
func discardTempFile(tempPath string) error {
	if err := os.Remove(tempPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("shada: removing temp file %s: %w", tempPath, err)
	}
	return nil
}
