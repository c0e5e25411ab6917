package balancer

import (
	"errors"
	"fmt"

	"github.com/poio911/futbol-app-pwa-sub004/internal/domain/model"
)

// ErrInsufficientPlayers is matched by every InsufficientPlayersError.
var ErrInsufficientPlayers = errors.New("insufficient players")

// InsufficientPlayersError reports a roster too small for the format.
type InsufficientPlayersError struct {
	Format    model.Format
	Required  int
	Available int
}

func (e *InsufficientPlayersError) Error() string {
	return fmt.Sprintf("not enough players for %s: need %d, have %d (%d short)",
		e.Format, e.Required, e.Available, e.Shortfall())
}

// Shortfall is the number of missing players.
func (e *InsufficientPlayersError) Shortfall() int { return e.Required - e.Available }

// Is lets errors.Is match ErrInsufficientPlayers.
func (e *InsufficientPlayersError) Is(target error) bool { return target == ErrInsufficientPlayers }
