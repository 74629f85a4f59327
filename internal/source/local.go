package source

import (
	"context"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/denismitr/tide/internal/logger"
	"github.com/denismitr/tide/migration"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

const (
	upSuffix   = ".up.sql"
	downSuffix = ".down.sql"

	// at most this many files are read at the same time
	readConcurrency = 8
)

var (
	keyRegexp        = regexp.MustCompile(`^\d[\w-]*$`)
	connectionRegexp = regexp.MustCompile(`^--\s*tide:connection\s+(\w+)\s*$`)
)

// LocalFileSource reads <key>.up.sql and optional <key>.down.sql pairs from a folder
type LocalFileSource struct {
	folder string
	lg     logger.Logger
}

var _ Source = (*LocalFileSource)(nil)

func NewLocalFileSource(folder string, lg logger.Logger) *LocalFileSource {
	if folder == "" {
		folder = DefaultMigrationsFolder
	}

	if lg == nil {
		lg = &logger.NullLogger{}
	}

	return &LocalFileSource{folder: folder, lg: lg}
}

func (lfs *LocalFileSource) IsValid() bool {
	info, err := os.Stat(lfs.folder)
	if err != nil {
		return false
	}

	return info.IsDir()
}

func (lfs *LocalFileSource) AlreadyExists(key string) bool {
	info, err := os.Stat(filepath.Join(lfs.folder, key+upSuffix))
	if err != nil {
		return false
	}

	return !info.IsDir()
}

// Create writes empty migration files for key and returns their paths
func (lfs *LocalFileSource) Create(key string, withDown bool) ([]string, error) {
	if !keyRegexp.MatchString(key) {
		return nil, errors.Wrapf(ErrNotAMigrationFile, "invalid key %q", key)
	}

	files := []string{filepath.Join(lfs.folder, key+upSuffix)}
	if withDown {
		files = append(files, filepath.Join(lfs.folder, key+downSuffix))
	}

	for _, f := range files {
		if err := os.WriteFile(f, nil, 0o644); err != nil {
			return nil, errors.Wrapf(err, "could not create file [%s]", f)
		}
	}

	return files, nil
}

func (lfs *LocalFileSource) Select(ctx context.Context) (migration.Migrations, error) {
	keys, err := lfs.keys()
	if err != nil {
		return nil, err
	}

	if len(keys) == 0 {
		return nil, errors.Wrapf(ErrNoMigrations, "folder %s", lfs.folder)
	}

	definitions := make([]migration.Migration, len(keys))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(readConcurrency)

	for i := range keys {
		i := i
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			m, err := lfs.readOne(keys[i])
			if err != nil {
				return errors.Wrapf(err, "migration %s", keys[i])
			}

			definitions[i] = m
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return migration.NewMigrations(definitions...)
}

func (lfs *LocalFileSource) keys() ([]string, error) {
	entries, err := os.ReadDir(lfs.folder)
	if err != nil {
		return nil, errors.Wrapf(err, "could not read migrations folder %s", lfs.folder)
	}

	ups := make(map[string]bool)
	downs := make(map[string]bool)

	for _, e := range entries {
		if e.IsDir() {
			continue
		}

		key, up, err := parseFilename(e.Name())
		if err != nil {
			lfs.lg.Debugf("skipping %s: %v", e.Name(), err)
			continue
		}

		if up {
			ups[key] = true
		} else {
			downs[key] = true
		}
	}

	for key := range downs {
		if !ups[key] {
			return nil, errors.Wrapf(ErrMissingUpFile, "%s", key)
		}
	}

	keys := make([]string, 0, len(ups))
	for key := range ups {
		keys = append(keys, key)
	}

	sort.Strings(keys)

	return keys, nil
}

func (lfs *LocalFileSource) readOne(key string) (migration.Migration, error) {
	upContents, err := os.ReadFile(filepath.Join(lfs.folder, key+upSuffix))
	if err != nil {
		return migration.Migration{}, err
	}

	upConn, upStatements := parseScript(string(upContents))
	m := migration.New(key, migration.Exec(upStatements...), nil, migration.OnConnection(upConn))

	downContents, err := os.ReadFile(filepath.Join(lfs.folder, key+downSuffix))
	switch {
	case os.IsNotExist(err):
		return m, nil
	case err != nil:
		return migration.Migration{}, err
	}

	downConn, downStatements := parseScript(string(downContents))
	if downConn != "" && downConn != upConn {
		return migration.Migration{}, errors.Wrapf(ErrConnectionMismatch, "%q vs %q", upConn, downConn)
	}

	m.Down = migration.Exec(downStatements...)

	return m, nil
}

func parseFilename(filename string) (key string, up bool, err error) {
	switch {
	case strings.HasSuffix(filename, upSuffix):
		key, up = strings.TrimSuffix(filename, upSuffix), true
	case strings.HasSuffix(filename, downSuffix):
		key = strings.TrimSuffix(filename, downSuffix)
	default:
		return "", false, ErrNotAMigrationFile
	}

	if !keyRegexp.MatchString(key) {
		return "", false, errors.Wrapf(ErrNotAMigrationFile, "invalid key %q", key)
	}

	return key, up, nil
}

// parseScript pulls the optional connection directive off the first line
// and splits the rest into statements ending with a semicolon at line end
func parseScript(script string) (string, []string) {
	lines := strings.Split(strings.ReplaceAll(script, "\r\n", "\n"), "\n")

	var conn string
	if len(lines) > 0 {
		if m := connectionRegexp.FindStringSubmatch(strings.TrimSpace(lines[0])); m != nil {
			conn = m[1]
			lines = lines[1:]
		}
	}

	var statements []string
	var current strings.Builder

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "--") {
			continue
		}

		if current.Len() > 0 {
			current.WriteString("\n")
		}
		current.WriteString(line)

		if strings.HasSuffix(trimmed, ";") {
			statements = append(statements, strings.TrimSpace(current.String()))
			current.Reset()
		}
	}

	if rest := strings.TrimSpace(current.String()); rest != "" {
		statements = append(statements, rest)
	}

	return conn, statements
}
