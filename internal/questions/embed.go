package questions

import (
	_ "embed"

	"github.com/intakeloop/intakeloop/internal/models"
)

//go:embed default_pack.yaml
var defaultPack []byte

// Default returns the built-in onboarding pack, used when no pack file is
// configured.
func Default() ([]models.Question, error) {
	return Parse(defaultPack)
}
