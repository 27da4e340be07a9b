package submit

import (
	"context"

	"go.uber.org/zap"

	"github.com/zdunecki/onboarding/pkg/wizard"
)

var (
	_ wizard.Adapter = (*HTTP)(nil)
	_ wizard.Adapter = Nop{}
)

// Nop accepts every payload without sending it anywhere. It logs what it
// would have sent when given a logger.
type Nop struct {
	Log *zap.Logger
}

func (n Nop) Submit(ctx context.Context, p wizard.Payload) error {
	if n.Log != nil {
		n.Log.Info("Submission skipped (offline)",
			zap.String("step", p.Step),
			zap.Bool("final", p.Final),
			zap.Int("answers", len(p.Answers)))
	}
	return nil
}
