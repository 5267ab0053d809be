package database

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"time"
)

const backupTimeLayout = "20060102_150405"

var backupFileRe = regexp.MustCompile(`^(\d{8}_\d{6})_`)

func (d *Database) backupDir() string {
	return filepath.Join(filepath.Dir(d.path), "backups")
}

// Backup writes a zipped copy of the database to the "backups" directory next to it
// and returns the path of the zip file.
func (d *Database) Backup(ctx context.Context) (string, error) {
	dir := d.backupDir()
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create backup directory: %w", err)
	}

	dest := filepath.Join(dir, fmt.Sprintf("%s_awattar.db", time.Now().Format(backupTimeLayout)))
	if _, err := d.write.ExecContext(ctx, "VACUUM INTO ?", dest); err != nil {
		return "", fmt.Errorf("vacuuming database into '%s': %w", dest, err)
	}

	zipPath := dest + ".zip"
	if err := zipFile(dest, zipPath, filepath.Base(d.path)); err != nil {
		return "", err
	}

	if err := os.Remove(dest); err != nil {
		d.logger.Warn("could not remove original backup after compression", slog.Any("error", err))
	}

	d.logger.Info("database backup complete", slog.String("filename", zipPath))
	return zipPath, nil
}

func zipFile(src, dst, name string) error {
	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("create zip file: %w", err)
	}
	defer out.Close()

	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open database backup for compression: %w", err)
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return fmt.Errorf("get file info: %w", err)
	}

	header, err := zip.FileInfoHeader(info)
	if err != nil {
		return fmt.Errorf("create zip header: %w", err)
	}
	header.Name = name
	header.Method = zip.Deflate

	zw := zip.NewWriter(out)
	w, err := zw.CreateHeader(header)
	if err != nil {
		return fmt.Errorf("create zip file entry: %w", err)
	}
	if _, err := io.Copy(w, in); err != nil {
		return fmt.Errorf("write database to zip: %w", err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("finalize zip file: %w", err)
	}
	return nil
}

// PurgeBackups removes backups older than retentionDays, a value < 1 keeps everything.
func (d *Database) PurgeBackups(ctx context.Context, retentionDays int) error {
	if retentionDays < 1 {
		return nil
	}
	retention := time.Duration(retentionDays) * 24 * time.Hour

	dir := d.backupDir()
	d.logger.Debug("purging old backups", slog.String("dir", dir))

	files, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read backup directory: %w", err)
	}

	deleted := 0
	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return err
		}
		match := backupFileRe.FindStringSubmatch(file.Name())
		if match == nil {
			continue
		}
		t, err := time.ParseInLocation(backupTimeLayout, match[1], time.Local)
		if err != nil {
			d.logger.Debug("failed to parse backup timestamp", slog.String("filename", file.Name()), slog.Any("error", err))
			continue
		}
		if time.Since(t) > retention {
			path := filepath.Join(dir, file.Name())
			if err := os.Remove(path); err != nil {
				return fmt.Errorf("remove old backup '%s': %w", path, err)
			}
			deleted++
		}
	}

	d.logger.Info("backup purge complete", slog.Int("deleted", deleted))
	return nil
}
