package snapshot

import (
	"fmt"
	"path/filepath"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"
)

// Identity is the immutable (date, hour, project) key of a snapshot.
type Identity struct {
	Date    time.Time
	Hour    int
	Project string
}

// NewIdentity normalizes date to midnight UTC.
func NewIdentity(date time.Time, hour int, project string) Identity {
	return Identity{
		Date:    DateOf(date),
		Hour:    hour,
		Project: project,
	}
}

// Time returns the observation timestamp.
func (id Identity) Time() time.Time {
	return id.Date.Add(time.Duration(id.Hour) * time.Hour)
}

// Key returns a normalized string key, insensitive to hour padding.
func (id Identity) Key() string {
	return fmt.Sprintf("%s|%d|%s", id.Date.Format("2006-01-02"), id.Hour, id.Project)
}

func (id Identity) String() string {
	return fmt.Sprintf("%s %02d:00 %s", id.Date.Format("2006-01-02"), id.Hour, id.Project)
}

// DateOf truncates t to its calendar date at midnight UTC.
func DateOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// DaysBetween returns the absolute number of calendar days between two dates.
func DaysBetween(a, b time.Time) int {
	d := int(DateOf(a).Sub(DateOf(b)).Hours() / 24)
	if d < 0 {
		return -d
	}
	return d
}

// ParseError reports a file name that does not follow the naming convention.
type ParseError struct {
	Name   string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("cannot parse snapshot name %q: %s", e.Name, e.Reason)
}

// Extensions lists the accepted spreadsheet extensions. Legacy BIFF .xls workbooks
// cannot be opened and are not listed.
var Extensions = []string{".xlsx", ".xlsm"}

var namePattern = regexp.MustCompile(`^(\d{4})\.(\d{1,2})\.(\d{1,2})-(\d{1,2})(.*)$`)

// IsLockFile reports whether name is an office lock file (~$name.xlsx).
func IsLockFile(name string) bool {
	return strings.HasPrefix(filepath.Base(name), "~$")
}

// ParseName parses "<YYYY.M.D>-<hour><project><ext>". Zero-padded and unpadded hours
// are equivalent. When a two-digit hour is not in hours but its first digit is, the
// one-digit reading is used and the second digit belongs to the project name.
func ParseName(name string, hours []int) (Identity, string, error) {
	base := filepath.Base(name)
	ext := filepath.Ext(base)
	if !slices.Contains(Extensions, strings.ToLower(ext)) {
		return Identity{}, "", &ParseError{Name: base, Reason: fmt.Sprintf("unsupported extension %q", ext)}
	}
	stem := strings.TrimSuffix(base, ext)

	m := namePattern.FindStringSubmatch(stem)
	if m == nil {
		return Identity{}, "", &ParseError{Name: base, Reason: "expected <YYYY.M.D>-<hour><project>"}
	}

	year, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	day, _ := strconv.Atoi(m[3])
	date := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if date.Year() != year || int(date.Month()) != month || date.Day() != day {
		return Identity{}, "", &ParseError{Name: base, Reason: fmt.Sprintf("invalid date %s.%s.%s", m[1], m[2], m[3])}
	}

	hourStr, project := m[4], m[5]
	hour, _ := strconv.Atoi(hourStr)
	if len(hourStr) == 2 && len(hours) > 0 && !slices.Contains(hours, hour) {
		short, _ := strconv.Atoi(hourStr[:1])
		if slices.Contains(hours, short) {
			hour = short
			project = hourStr[1:] + project
		}
	}
	if hour > 23 {
		return Identity{}, "", &ParseError{Name: base, Reason: fmt.Sprintf("hour %d out of range", hour)}
	}
	if len(hours) > 0 && !slices.Contains(hours, hour) {
		return Identity{}, "", &ParseError{Name: base, Reason: fmt.Sprintf("hour %d is not a canonical time slot", hour)}
	}

	project = strings.TrimSpace(project)
	if project == "" {
		return Identity{}, "", &ParseError{Name: base, Reason: "missing project name"}
	}

	return Identity{Date: date, Hour: hour, Project: project}, ext, nil
}

// GenerateName renders the canonical file name for id. The hour is unpadded unless the
// project name starts with a digit, in which case it is padded to two digits so the
// name parses back to the same identity.
func GenerateName(id Identity, ext string) string {
	if ext == "" {
		ext = ".xlsx"
	}
	hourFmt := "%d"
	if id.Project != "" && id.Project[0] >= '0' && id.Project[0] <= '9' {
		hourFmt = "%02d"
	}
	return fmt.Sprintf("%d.%d.%d-"+hourFmt+"%s%s", id.Date.Year(), int(id.Date.Month()), id.Date.Day(), id.Hour, id.Project, ext)
}

func baseName(path string) string {
	return filepath.Base(path)
}
