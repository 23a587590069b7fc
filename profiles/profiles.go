// Package profiles discovers the AWS credential profiles the external
// tool can use, reading the same shared config and credentials files
// the tool itself reads.
package profiles

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/go-ini/ini"
	"github.com/rs/zerolog"
)

const configProfilePrefix = "profile "

// Profile is one named credential context.
type Profile struct {
	Name          string `json:"name"`
	Region        string `json:"region,omitempty"`
	InConfig      bool   `json:"in_config"`
	InCredentials bool   `json:"in_credentials"`
}

// Source says which file(s) define the profile.
func (p Profile) Source() string {
	switch {
	case p.InConfig && p.InCredentials:
		return "config+credentials"
	case p.InCredentials:
		return "credentials"
	default:
		return "config"
	}
}

// Store reads profiles from a fixed pair of files.
type Store struct {
	configFile string
	credsFile  string
	logger     zerolog.Logger
}

// NewStore resolves the shared config and credentials locations the
// way the AWS tooling does: env overrides first, ~/.aws defaults
// otherwise.
func NewStore(logger zerolog.Logger) *Store {
	configFile := os.Getenv("AWS_CONFIG_FILE")
	if configFile == "" {
		configFile = awsconfig.DefaultSharedConfigFilename()
	}
	credsFile := os.Getenv("AWS_SHARED_CREDENTIALS_FILE")
	if credsFile == "" {
		credsFile = awsconfig.DefaultSharedCredentialsFilename()
	}
	return NewStoreWithFiles(configFile, credsFile, logger)
}

// NewStoreWithFiles builds a store over explicit file paths.
func NewStoreWithFiles(configFile, credsFile string, logger zerolog.Logger) *Store {
	return &Store{
		configFile: configFile,
		credsFile:  credsFile,
		logger:     logger,
	}
}

// List returns every profile from both files, merged by name and
// sorted. Missing files are treated as empty, not as errors; a machine
// with no AWS setup simply has no profiles.
func (s *Store) List() ([]Profile, error) {
	found := make(map[string]*Profile)

	cfg, err := ini.LooseLoad(s.configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", s.configFile, err)
	}
	for _, section := range cfg.Sections() {
		name, ok := configSectionProfile(section.Name())
		if !ok {
			continue
		}
		p := ensure(found, name)
		p.InConfig = true
		p.Region = section.Key("region").String()
	}

	creds, err := ini.LooseLoad(s.credsFile)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", s.credsFile, err)
	}
	for _, section := range creds.Sections() {
		name := section.Name()
		if name == ini.DefaultSection {
			continue
		}
		ensure(found, name).InCredentials = true
	}

	profiles := make([]Profile, 0, len(found))
	for _, p := range found {
		profiles = append(profiles, *p)
	}
	sort.Slice(profiles, func(i, j int) bool { return profiles[i].Name < profiles[j].Name })
	return profiles, nil
}

// Names returns just the profile names, sorted.
func (s *Store) Names() ([]string, error) {
	profiles, err := s.List()
	if err != nil {
		return nil, err
	}
	names := make([]string, len(profiles))
	for i, p := range profiles {
		names[i] = p.Name
	}
	return names, nil
}

// Exists reports whether name is defined in either file.
func (s *Store) Exists(name string) (bool, error) {
	profiles, err := s.List()
	if err != nil {
		return false, err
	}
	for _, p := range profiles {
		if p.Name == name {
			return true, nil
		}
	}
	return false, nil
}

// Describe resolves one profile through the AWS SDK's shared config
// loader, which applies the same precedence the external tool does.
// It fails when the profile does not exist.
func (s *Store) Describe(ctx context.Context, name string) (Profile, error) {
	shared, err := awsconfig.LoadSharedConfigProfile(ctx, name, func(o *awsconfig.LoadSharedConfigOptions) {
		o.ConfigFiles = []string{s.configFile}
		o.CredentialsFiles = []string{s.credsFile}
	})
	if err != nil {
		return Profile{}, fmt.Errorf("failed to resolve profile %s: %w", name, err)
	}

	profile := Profile{Name: name, Region: shared.Region}
	if known, err := s.List(); err == nil {
		for _, p := range known {
			if p.Name == name {
				profile.InConfig = p.InConfig
				profile.InCredentials = p.InCredentials
			}
		}
	}
	return profile, nil
}

// configSectionProfile maps a config file section name to its profile
// name: "[default]" is the default profile, "[profile x]" is x, and
// anything else (sso-session blocks, services) is not a profile.
func configSectionProfile(section string) (string, bool) {
	if section == ini.DefaultSection {
		return "", false
	}
	if section == "default" {
		return "default", true
	}
	if strings.HasPrefix(section, configProfilePrefix) {
		name := strings.TrimSpace(strings.TrimPrefix(section, configProfilePrefix))
		return name, name != ""
	}
	return "", false
}

func ensure(found map[string]*Profile, name string) *Profile {
	if p, ok := found[name]; ok {
		return p
	}
	p := &Profile{Name: name}
	found[name] = p
	return p
}
