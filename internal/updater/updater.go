// Package updater replaces the running binary with the latest GitHub release.
package updater

import (
	"archive/zip"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"
)

const (
	githubAPIURL = "https://api.github.com/repos/jchiru21/tech-debt-assassin/releases/latest"
	userAgent    = "tda-updater"
	binaryPrefix = "tda"
)

// Release is a GitHub release with its downloadable assets.
type Release struct {
	TagName string  `json:"tag_name"`
	Name    string  `json:"name"`
	Assets  []Asset `json:"assets"`
}

type Asset struct {
	Name               string `json:"name"`
	BrowserDownloadURL string `json:"browser_download_url"`
	Size               int64  `json:"size"`
}

type Updater struct {
	currentVersion string
	mirror         string
}

// NewUpdater builds an updater for the given running version. mirror, when
// set, is prefixed to every GitHub URL (proxy-style mirrors).
func NewUpdater(currentVersion, mirror string) *Updater {
	return &Updater{
		currentVersion: currentVersion,
		mirror:         strings.TrimRight(mirror, "/"),
	}
}

func (u *Updater) withMirror(url string) string {
	if u.mirror == "" {
		return url
	}
	return u.mirror + "/" + url
}

// CheckForUpdate fetches the latest release and reports whether it differs
// from the running version. Dev builds always update.
func (u *Updater) CheckForUpdate() (*Release, bool, error) {
	release, err := u.getLatestRelease()
	if err != nil {
		return nil, false, fmt.Errorf("failed to fetch latest release: %w", err)
	}

	if u.currentVersion == "dev" {
		return release, true, nil
	}

	latest := strings.TrimPrefix(release.TagName, "v")
	current := strings.TrimPrefix(u.currentVersion, "v")
	return release, latest != current, nil
}

func (u *Updater) getLatestRelease() (*Release, error) {
	client := &http.Client{Timeout: 30 * time.Second}

	req, err := http.NewRequest("GET", u.withMirror(githubAPIURL), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("github API returned status: %d", resp.StatusCode)
	}

	var release Release
	if err := json.NewDecoder(resp.Body).Decode(&release); err != nil {
		return nil, err
	}
	return &release, nil
}

func (u *Updater) selectAsset(assets []Asset) (*Asset, error) {
	goos := runtime.GOOS
	goarch := runtime.GOARCH

	for _, asset := range assets {
		name := strings.ToLower(asset.Name)
		if !strings.Contains(name, goos) {
			continue
		}
		if strings.Contains(name, goarch) ||
			(goarch == "amd64" && (strings.Contains(name, "x86_64") || strings.Contains(name, "x64"))) ||
			(goarch == "386" && strings.Contains(name, "x86")) {
			return &asset, nil
		}
	}

	// OS match alone as a fallback.
	for _, asset := range assets {
		if strings.Contains(strings.ToLower(asset.Name), goos) {
			return &asset, nil
		}
	}

	return nil, fmt.Errorf("no suitable asset found for %s/%s", goos, goarch)
}

// Update downloads the platform asset for release and swaps in the binary.
func (u *Updater) Update(release *Release) error {
	asset, err := u.selectAsset(release.Assets)
	if err != nil {
		return err
	}

	fmt.Printf("Downloading %s (%d bytes)...\n", asset.Name, asset.Size)

	tmpFile, err := u.downloadAsset(asset)
	if err != nil {
		return fmt.Errorf("failed to download asset: %w", err)
	}
	defer os.Remove(tmpFile)

	execPath, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to get executable path: %w", err)
	}

	if strings.ToLower(filepath.Ext(asset.Name)) == ".zip" {
		return u.updateFromZip(tmpFile, execPath)
	}
	return u.replaceExecutable(tmpFile, execPath)
}

func (u *Updater) downloadAsset(asset *Asset) (string, error) {
	client := &http.Client{Timeout: 5 * time.Minute}

	req, err := http.NewRequest("GET", u.withMirror(asset.BrowserDownloadURL), nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("download failed with status: %d", resp.StatusCode)
	}

	tmpFile, err := os.CreateTemp("", "tda-update-*")
	if err != nil {
		return "", err
	}
	defer tmpFile.Close()

	if _, err = io.Copy(tmpFile, resp.Body); err != nil {
		os.Remove(tmpFile.Name())
		return "", err
	}

	return tmpFile.Name(), nil
}

func (u *Updater) updateFromZip(zipPath, execPath string) error {
	r, err := zip.OpenReader(zipPath)
	if err != nil {
		return fmt.Errorf("failed to open zip: %w", err)
	}
	defer r.Close()

	var binaryFile *zip.File
	execName := filepath.Base(execPath)

	for _, f := range r.File {
		name := filepath.Base(f.Name)
		if name == execName ||
			strings.HasPrefix(name, binaryPrefix) &&
				(strings.HasSuffix(name, ".exe") || !strings.Contains(name, ".")) {
			binaryFile = f
			break
		}
	}

	if binaryFile == nil {
		return fmt.Errorf("executable not found in zip archive")
	}

	rc, err := binaryFile.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	tmpBinary, err := os.CreateTemp("", "tda-binary-*")
	if err != nil {
		return err
	}
	tmpBinaryPath := tmpBinary.Name()
	defer os.Remove(tmpBinaryPath)

	_, err = io.Copy(tmpBinary, rc)
	tmpBinary.Close()
	if err != nil {
		return err
	}

	return u.replaceExecutable(tmpBinaryPath, execPath)
}

// replaceExecutable swaps execPath for the binary at newPath. Windows cannot
// replace a running executable, so the old one is parked as .old and removed
// on the next run.
func (u *Updater) replaceExecutable(newPath, execPath string) error {
	if runtime.GOOS != "windows" {
		if err := os.Chmod(newPath, 0755); err != nil {
			return fmt.Errorf("failed to make binary executable: %w", err)
		}
		if err := os.Rename(newPath, execPath); err != nil {
			return fmt.Errorf("failed to replace executable: %w", err)
		}
		fmt.Println("Update successful!")
		return nil
	}

	oldPath := execPath + ".old"
	os.Remove(oldPath)

	if err := os.Rename(execPath, oldPath); err != nil {
		return fmt.Errorf("failed to backup current executable: %w", err)
	}
	if err := copyFile(newPath, execPath); err != nil {
		os.Rename(oldPath, execPath)
		return fmt.Errorf("failed to copy new executable: %w", err)
	}

	fmt.Println("Update successful! The old version will be removed on next run.")
	fmt.Println("Please restart the application to use the new version.")
	return nil
}

func copyFile(src, dst string) error {
	sourceFile, err := os.Open(src)
	if err != nil {
		return err
	}
	defer sourceFile.Close()

	destFile, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer destFile.Close()

	_, err = io.Copy(destFile, sourceFile)
	return err
}

// CleanupOldVersion removes the parked .old backup left by a Windows update.
func CleanupOldVersion() error {
	if runtime.GOOS != "windows" {
		return nil
	}

	execPath, err := os.Executable()
	if err != nil {
		return nil
	}

	oldPath := execPath + ".old"
	if _, err := os.Stat(oldPath); err == nil {
		os.Remove(oldPath)
	}

	return nil
}
