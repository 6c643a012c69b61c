package version

import (
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/rxtech-lab/argo-signal-bridge/pkg/errors"
)

// devBuild marks an unreleased binary or a config that tracks one.
const devBuild = "main"

// CheckConfigCompatibility reports whether a config written for configVersion
// may be loaded by a binary at binaryVersion. Both must sit on the same
// major.minor release line; the config schema only changes between lines.
// Either side being a development build disables the check.
func CheckConfigCompatibility(binaryVersion, configVersion string) error {
	if isDevBuild(binaryVersion) || isDevBuild(configVersion) {
		return nil
	}

	binary, err := parseRelease("binary", binaryVersion)
	if err != nil {
		return err
	}

	config, err := parseRelease("config", configVersion)
	if err != nil {
		return err
	}

	if releaseLine(binary) == releaseLine(config) {
		return nil
	}

	return errors.Newf(errors.ErrCodeVersionMismatch,
		"config targets release line %s but binary %s is on %s",
		releaseLine(config), binary.Original(), releaseLine(binary))
}

func isDevBuild(v string) bool {
	return strings.TrimPrefix(v, "v") == devBuild
}

func parseRelease(side, v string) (*semver.Version, error) {
	parsed, err := semver.NewVersion(v)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrCodeVersionMismatch, err, "unparsable %s version %q", side, v)
	}

	return parsed, nil
}

// releaseLine renders v as "major.minor".
func releaseLine(v *semver.Version) string {
	return fmt.Sprintf("%d.%d", v.Major(), v.Minor())
}
