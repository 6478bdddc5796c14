package commands

import (
	"crypto/ed25519"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/axonworks/axon/pkg/license"
)

// ErrLicenseRejected is returned by inspect when the token failed
// signature verification.
var ErrLicenseRejected = errors.New("license token rejected")

// File names written by keygen.
const (
	vendorPublicFile  = "vendor.pub"
	vendorPrivateFile = "vendor.key"
)

// NewLicenseCommand creates the license command group: inspect, keygen,
// and sign.
func NewLicenseCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "license",
		Short: "Inspect and produce license tokens",
	}

	cmd.AddCommand(newLicenseInspectCommand())
	cmd.AddCommand(newLicenseKeygenCommand())
	cmd.AddCommand(newLicenseSignCommand())

	return cmd
}

type licenseInspect struct {
	tokenFile string
	publicKey string
}

func newLicenseInspectCommand() *cobra.Command {
	li := &licenseInspect{}

	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Show a token's state, tier, limits, and features",
		RunE:  li.run,
	}

	cmd.Flags().StringVar(&li.tokenFile, "license", "", "License token file")
	cmd.Flags().StringVar(&li.publicKey, "public-key", "", "Hex vendor public key for signature verification")
	_ = cmd.MarkFlagRequired("license")

	return cmd
}

// inspectionReport is the JSON the inspect command prints. State is
// filled only when the token went through signature verification.
type inspectionReport struct {
	State     string         `json:"state,omitempty"`
	Tier      string         `json:"tier"`
	LicenseID string         `json:"licenseId,omitempty"`
	IssuedTo  string         `json:"issuedTo,omitempty"`
	Expiry    time.Time      `json:"expiry,omitzero"`
	Features  []string       `json:"features,omitempty"`
	Limits    license.Limits `json:"limits"`
	Verified  bool           `json:"verified"`
}

func (li *licenseInspect) run(cmd *cobra.Command, _ []string) error {
	data, err := os.ReadFile(li.tokenFile)
	if err != nil {
		return fmt.Errorf("read license %s: %w", li.tokenFile, err)
	}

	report, err := li.inspect(data)
	if err != nil {
		return &ExitError{Code: ExitLicense, Err: err}
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")

	if encodeErr := enc.Encode(report); encodeErr != nil {
		return fmt.Errorf("encode inspection: %w", encodeErr)
	}

	if report.State != "" && !report.Verified {
		return &ExitError{Code: ExitLicense, Err: ErrLicenseRejected}
	}

	return nil
}

// inspect builds the report. Without a public key the payload is decoded
// as-is; with one the token runs through the manager so the derived
// state carries the grace and skew semantics the runtime applies.
func (li *licenseInspect) inspect(data []byte) (inspectionReport, error) {
	if li.publicKey == "" {
		tok, err := license.ParseUnverified(data)
		if err != nil {
			return inspectionReport{}, err
		}

		return inspectionReport{
			Tier:      tok.Tier.String(),
			LicenseID: tok.LicenseID,
			IssuedTo:  tok.IssuedTo,
			Expiry:    tok.Expiry,
			Features:  tok.Features,
			Limits:    tok.Limits,
		}, nil
	}

	key, err := license.DecodeVendorKey(li.publicKey)
	if err != nil {
		return inspectionReport{}, err
	}

	manager, err := license.NewManager(license.Options{
		TokenJSON: data,
		VendorKey: key,
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	if err != nil {
		return inspectionReport{}, err
	}

	snap := manager.Snapshot()

	return inspectionReport{
		State:     snap.State.String(),
		Tier:      snap.Tier.String(),
		LicenseID: snap.LicenseID,
		IssuedTo:  snap.IssuedTo,
		Expiry:    snap.Expiry,
		Features:  snap.Features,
		Limits:    snap.Limits,
		Verified:  !snap.State.Fatal(),
	}, nil
}

type licenseKeygen struct {
	dir string
}

func newLicenseKeygenCommand() *cobra.Command {
	lk := &licenseKeygen{}

	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate an Ed25519 vendor keypair",
		RunE:  lk.run,
	}

	cmd.Flags().StringVar(&lk.dir, "dir", ".", "Directory for vendor.pub and vendor.key")

	return cmd
}

func (lk *licenseKeygen) run(cmd *cobra.Command, _ []string) error {
	pub, priv, err := license.GenerateKeypair()
	if err != nil {
		return err
	}

	pubPath := filepath.Join(lk.dir, vendorPublicFile)
	keyPath := filepath.Join(lk.dir, vendorPrivateFile)

	writeErr := os.WriteFile(pubPath, []byte(license.EncodeVendorKey(pub)+"\n"), 0o644)
	if writeErr != nil {
		return fmt.Errorf("write %s: %w", pubPath, writeErr)
	}

	writeErr = os.WriteFile(keyPath, []byte(hex.EncodeToString(priv)+"\n"), 0o600)
	if writeErr != nil {
		return fmt.Errorf("write %s: %w", keyPath, writeErr)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "public key: %s\nwrote %s and %s\n",
		license.EncodeVendorKey(pub), pubPath, keyPath)

	return nil
}

type licenseSign struct {
	keyFile  string
	out      string
	issuedTo string
	tier     string
	expiry   string
	features []string

	maxSlots     int
	maxWorkUnits int
	maxNodes     int
}

func newLicenseSignCommand() *cobra.Command {
	ls := &licenseSign{}

	cmd := &cobra.Command{
		Use:   "sign",
		Short: "Issue a signed license token",
		RunE:  ls.run,
	}

	cmd.Flags().StringVar(&ls.keyFile, "key", "", "Vendor private key file (hex)")
	cmd.Flags().StringVarP(&ls.out, "output", "o", "token.axl", "Token output file")
	cmd.Flags().StringVar(&ls.issuedTo, "issued-to", "", "Licensee name")
	cmd.Flags().StringVar(&ls.tier, "tier", "professional", "Tier: free, starter, professional, enterprise")
	cmd.Flags().StringVar(&ls.expiry, "expiry", "", "Expiry date (2006-01-02 or RFC3339)")
	cmd.Flags().StringSliceVar(&ls.features, "features", nil, "Feature identifiers")
	cmd.Flags().IntVar(&ls.maxSlots, "max-slots", 100, "Concurrent slot limit")
	cmd.Flags().IntVar(&ls.maxWorkUnits, "max-work-units", 100000, "Work units per minute")
	cmd.Flags().IntVar(&ls.maxNodes, "max-nodes", 100, "Workflow node limit")
	_ = cmd.MarkFlagRequired("key")
	_ = cmd.MarkFlagRequired("issued-to")
	_ = cmd.MarkFlagRequired("expiry")

	return cmd
}

func (ls *licenseSign) run(cmd *cobra.Command, _ []string) error {
	key, err := readSigningKey(ls.keyFile)
	if err != nil {
		return err
	}

	tier, err := license.ParseTier(ls.tier)
	if err != nil {
		return err
	}

	expiry, err := parseExpiry(ls.expiry)
	if err != nil {
		return err
	}

	tok := license.Token{
		LicenseID: uuid.NewString(),
		IssuedTo:  ls.issuedTo,
		IssuedAt:  time.Now().UTC(),
		Expiry:    expiry,
		Tier:      tier,
		Features:  ls.features,
		Limits: license.Limits{
			MaxSlots:              ls.maxSlots,
			MaxWorkUnitsPerMinute: ls.maxWorkUnits,
			MaxNodes:              ls.maxNodes,
		},
	}

	data, err := license.Sign(tok, key)
	if err != nil {
		return err
	}

	writeErr := os.WriteFile(ls.out, data, 0o644)
	if writeErr != nil {
		return fmt.Errorf("write token %s: %w", ls.out, writeErr)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "issued %s to %s (tier %s, expires %s)\n",
		tok.LicenseID, tok.IssuedTo, tok.Tier, tok.Expiry.Format(time.RFC3339))

	return nil
}

func readSigningKey(path string) (ed25519.PrivateKey, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read key %s: %w", path, err)
	}

	decoded, err := hex.DecodeString(strings.TrimSpace(string(raw)))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", license.ErrSigningKey, err)
	}

	if len(decoded) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("%w: got %d bytes, want %d",
			license.ErrSigningKey, len(decoded), ed25519.PrivateKeySize)
	}

	return ed25519.PrivateKey(decoded), nil
}

// parseExpiry accepts a date or a full RFC 3339 timestamp. Bare dates
// expire at end of day UTC.
func parseExpiry(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}

	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse expiry %q: %w", s, err)
	}

	return t.Add(24*time.Hour - time.Second), nil
}
