package service

import "context"

// Job is one unit of background work run by the job binary, either one-shot
// or on a schedule.
type Job interface {
	Init(ctx context.Context) error
	Run(ctx context.Context) error
	CleanUp(ctx context.Context) error
}
