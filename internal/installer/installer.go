package installer

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/ZebulonRouseFrantzich/keg/internal/descriptor"
	"github.com/ZebulonRouseFrantzich/keg/internal/logger"
	"github.com/ZebulonRouseFrantzich/keg/internal/transaction"
)

// Config holds configuration for the installer
type Config struct {
	// BinDir receives installed executables (required)
	BinDir string
	// CacheDir holds staged downloads (required)
	CacheDir string
	// ReceiptsDir receives install receipts; empty disables receipts
	ReceiptsDir string
	// Timeout bounds the whole fetch step, retries included; zero means none
	Timeout time.Duration
	// Retries is the number of fetch retries; values below 1 use DefaultRetries
	Retries int
	// RetryBackoff is the delay before the first retry
	RetryBackoff time.Duration
	// CheckTimeout bounds the post-install smoke test
	CheckTimeout time.Duration
	// Keyring is an OpenPGP keyring for signature_url checks
	Keyring string
	// TrustedRoot is a sigstore trusted_root.json; empty fetches the public one
	TrustedRoot string
	// HTTPClient overrides the default client
	HTTPClient *http.Client
	// UserAgent overrides DefaultUserAgent
	UserAgent string
	// Progress receives a download progress bar when set
	Progress io.Writer
	// Platform is recorded in receipts, e.g. "darwin/amd64"
	Platform string
}

// Installer orchestrates fetch, verification, placement and the smoke test
type Installer struct {
	cfg        Config
	downloader *Downloader
	verifier   *Verifier
	extractor  *Extractor
	placer     *Placer
	checker    *Checker
}

// New creates a new installer
func New(cfg Config) (*Installer, error) {
	if cfg.BinDir == "" {
		return nil, fmt.Errorf("BinDir is required")
	}
	if cfg.CacheDir == "" {
		return nil, fmt.Errorf("CacheDir is required")
	}

	downloader := NewDownloader(cfg.HTTPClient)
	if cfg.Retries >= 1 {
		downloader.retries = cfg.Retries
	}
	if cfg.RetryBackoff > 0 {
		downloader.backoff = cfg.RetryBackoff
	}
	downloader.progress = cfg.Progress
	if cfg.UserAgent != "" {
		downloader.userAgent = cfg.UserAgent
	}

	return &Installer{
		cfg:        cfg,
		downloader: downloader,
		verifier:   NewVerifier(cfg.Keyring, cfg.TrustedRoot),
		extractor:  NewExtractor(),
		placer:     NewPlacer(cfg.BinDir),
		checker:    NewChecker(cfg.CheckTimeout),
	}, nil
}

// BinaryPath returns where the named package is installed.
func (i *Installer) BinaryPath(name string) string {
	return i.placer.Path(name)
}

// Install runs Pending → Fetched → Verified → Placed → Checked for one
// resolved variant. It always returns a non-nil Result describing how far the
// install got. A failed smoke test returns the Result in StatePlaced together
// with a *PostInstallCheckError; every other error means nothing was placed.
func (i *Installer) Install(ctx context.Context, desc *descriptor.PackageDescriptor, variant descriptor.ArtifactVariant) (*Result, error) {
	start := time.Now()
	receipt := transaction.NewReceipt(desc.Name, desc.Version)

	res := &Result{
		Name:    desc.Name,
		Version: desc.Version,
		URL:     variant.URL,
		Path:    i.BinaryPath(desc.Name),
		State:   StatePending,
	}
	defer func() { res.Duration = time.Since(start) }()

	ctx = logger.WithKV(ctx, "package", desc.Name, "install_id", receipt.ID)

	if variant.SHA256 == "" {
		res.fail(StepVerify)
		return res, &IntegrityError{URL: variant.URL, Method: VerificationSHA256, Err: errNoChecksum}
	}

	// Installs of the same artifact share one cache entry; hold it until
	// the binary is placed.
	cachePath := i.cachePath(desc, variant)
	cacheLock, err := transaction.AcquireLock(ctx, filepath.Dir(cachePath), filepath.Base(cachePath))
	if err != nil {
		res.fail(StepFetch)
		return res, &FetchError{URL: variant.URL, Err: err}
	}
	defer cacheLock.Release()

	// Fetch
	stagePath, cacheHit, err := i.fetch(ctx, variant, cachePath)
	if err != nil {
		res.fail(StepFetch)
		return res, err
	}
	res.CacheHit = cacheHit
	res.advance(StateFetched)
	logger.InfoKV(ctx, "Fetched artifact", "url", variant.URL, "cached", cacheHit)

	// Verify
	methods, actual, err := i.verify(ctx, variant, stagePath)
	if err != nil {
		// A staged artifact that failed verification is never kept.
		os.Remove(stagePath)
		res.fail(StepVerify)
		return res, err
	}
	res.SHA256 = actual
	res.Verification = methods
	res.Verified = true
	res.advance(StateVerified)
	logger.InfoKV(ctx, "Verified artifact", "sha256", actual, "methods", methodNames(methods))

	// Extract
	binaryPath := stagePath
	if variant.Archive != descriptor.ArchiveNone {
		workDir, err := os.MkdirTemp(i.cfg.CacheDir, ".extract-*")
		if err != nil {
			res.fail(StepExtract)
			return res, &PlacementError{Path: res.Path, Op: "extract", Err: err}
		}
		defer os.RemoveAll(workDir)

		member := variant.Binary
		if member == "" {
			member = desc.Name
		}
		binaryPath = filepath.Join(workDir, desc.Name)
		if err := i.extractor.ExtractBinary(stagePath, variant.Archive, member, binaryPath); err != nil {
			res.fail(StepExtract)
			return res, &PlacementError{Path: res.Path, Op: "extract", Err: err}
		}
	}

	// Place
	replaced, err := i.placer.Place(ctx, desc.Name, binaryPath)
	if err != nil {
		res.fail(StepPlace)
		return res, err
	}
	cacheLock.Release()
	res.Replaced = replaced
	res.advance(StatePlaced)
	logger.InfoKV(ctx, "Placed binary", "path", res.Path, "replaced", replaced)

	// Check
	output, checkErr := i.checker.Run(ctx, res.Path, desc.TestArgs())
	res.CheckOutput = output
	if checkErr != nil {
		res.fail(StepCheck)
		logger.WarnKV(ctx, "Post-install check failed", "error", checkErr)
	} else {
		res.Checked = true
		res.advance(StateChecked)
	}

	if i.cfg.ReceiptsDir != "" {
		receipt.URL = variant.URL
		receipt.SHA256 = actual
		receipt.Path = res.Path
		receipt.Platform = i.cfg.Platform
		receipt.Verification = methodNames(methods)
		receipt.Checked = res.Checked
		if checkErr != nil {
			receipt.CheckError = checkErr.Error()
		}
		if err := receipt.Save(i.cfg.ReceiptsDir); err != nil {
			logger.WarnKV(ctx, "Could not write install receipt", "error", err)
		} else {
			res.ReceiptPath = transaction.ReceiptPath(i.cfg.ReceiptsDir, desc.Name)
		}
	}

	return res, checkErr
}

// fetch stages the artifact in the cache. A cached file whose digest matches
// the declared checksum is reused without network access.
func (i *Installer) fetch(ctx context.Context, variant descriptor.ArtifactVariant, cachePath string) (string, bool, error) {
	if fileExists(cachePath) {
		if _, err := i.verifier.VerifyChecksum(variant.URL, cachePath, variant.SHA256); err == nil {
			return cachePath, true, nil
		}
		logger.DebugKV(ctx, "Discarding stale cache entry", "path", cachePath)
		os.Remove(cachePath)
	}

	ctx, cancel := i.withFetchTimeout(ctx)
	defer cancel()

	if err := i.downloader.DownloadToFile(ctx, variant.URL, cachePath); err != nil {
		return "", false, err
	}
	return cachePath, false, nil
}

// withFetchTimeout bounds a download by cfg.Timeout, when set.
func (i *Installer) withFetchTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if i.cfg.Timeout > 0 {
		return context.WithTimeout(ctx, i.cfg.Timeout)
	}
	return context.WithCancel(ctx)
}

// download fetches a detached signature or bundle under the fetch timeout.
func (i *Installer) download(ctx context.Context, src, destPath string) error {
	ctx, cancel := i.withFetchTimeout(ctx)
	defer cancel()
	return i.downloader.DownloadToFile(ctx, src, destPath)
}

// verify runs the checksum check and any signature checks the variant asks for.
func (i *Installer) verify(ctx context.Context, variant descriptor.ArtifactVariant, stagePath string) ([]VerificationMethod, string, error) {
	actual, err := i.verifier.VerifyChecksum(variant.URL, stagePath, variant.SHA256)
	if err != nil {
		return nil, actual, err
	}
	methods := []VerificationMethod{VerificationSHA256}

	if variant.SignatureURL != "" {
		sigPath := stagePath + ".sig"
		defer os.Remove(sigPath)
		if err := i.download(ctx, variant.SignatureURL, sigPath); err != nil {
			return nil, actual, err
		}
		if err := i.verifier.VerifySignature(variant.URL, stagePath, sigPath); err != nil {
			return nil, actual, err
		}
		methods = append(methods, VerificationGPG)
	}

	if variant.Sigstore != nil {
		bundlePath := stagePath + ".sigstore.json"
		defer os.Remove(bundlePath)
		if err := i.download(ctx, variant.Sigstore.URL, bundlePath); err != nil {
			return nil, actual, err
		}
		if err := i.verifier.VerifyBundle(variant.URL, stagePath, bundlePath, variant.Sigstore); err != nil {
			return nil, actual, err
		}
		methods = append(methods, VerificationSigstore)
	}

	return methods, actual, nil
}

// cachePath returns cache/{name}/{version}/{filename}.
func (i *Installer) cachePath(desc *descriptor.PackageDescriptor, variant descriptor.ArtifactVariant) string {
	filename := desc.Name
	if u, err := url.Parse(variant.URL); err == nil {
		if base := path.Base(u.Path); base != "." && base != "/" && base != "" {
			filename = base
		}
	}
	return filepath.Join(i.cfg.CacheDir, safeSegment(desc.Name), safeSegment(desc.Version), safeSegment(filename))
}

// safeSegment keeps a value usable as a single path element.
func safeSegment(s string) string {
	s = strings.NewReplacer("/", "_", `\`, "_").Replace(s)
	if s == "" || s == "." || s == ".." {
		return "_"
	}
	return s
}

func methodNames(methods []VerificationMethod) []string {
	names := make([]string, 0, len(methods))
	for _, m := range methods {
		names = append(names, m.String())
	}
	return names
}
