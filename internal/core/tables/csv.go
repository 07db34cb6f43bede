package tables

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/JonMunkholm/TableExport/internal/core"
	"github.com/JonMunkholm/TableExport/internal/export"
	"github.com/JonMunkholm/TableExport/internal/source"
)

// RegisterCSVDir registers every *.csv file directly inside dir. Files are
// re-read on each export. It returns the keys registered, in file name order.
func RegisterCSVDir(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read csv dir: %w", err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".csv") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	var (
		keys []string
		errs []error
	)
	for _, name := range names {
		key, err := RegisterCSVFile(filepath.Join(dir, name))
		if err != nil {
			errs = append(errs, err)
			continue
		}
		keys = append(keys, key)
	}

	slog.Info("csv tables registered", "dir", dir, "count", len(keys))
	return keys, errors.Join(errs...)
}

// RegisterCSVFile registers a single CSV file under a key derived from its
// name.
func RegisterCSVFile(path string) (string, error) {
	key := source.TableKey(path)
	if key == "" {
		return "", fmt.Errorf("no table key for %s", filepath.Base(path))
	}

	base := filepath.Base(path)
	err := register(core.TableDefinition{
		Info: core.TableInfo{
			Key:    key,
			Group:  GroupCSV,
			Label:  strings.TrimSuffix(base, filepath.Ext(base)),
			Source: "csv:" + base,
		},
		Open: func(ctx context.Context) (export.Table, error) {
			return source.LoadCSV(path)
		},
	})
	if err != nil {
		return "", err
	}
	return key, nil
}
