package config

import "fmt"

// workerKeys groups the Redis keys used by the background grading worker.
type workerKeys struct {
	// GradingJobsQueue is the list the API pushes pending job IDs onto
	// and the worker BLPops from.
	GradingJobsQueue string
}

// WorkerKey holds the Redis key constants for worker queues.
var WorkerKey = workerKeys{
	GradingJobsQueue: "worker:queue:grading_jobs",
}

// JobEventsChannel returns the pub/sub channel carrying grading-job status
// events for one professor. The WebSocket job stream subscribes to it.
func JobEventsChannel(ownerID int) string {
	return fmt.Sprintf("grading:jobs:events:%d", ownerID)
}
