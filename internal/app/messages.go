package app

import "time"

// TickMsg triggers a frame update: a fresh snapshot and the sweep animation.
type TickMsg time.Time
