package jenkins

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"remotebuild/internal/config"
	"remotebuild/internal/engine"
	"remotebuild/internal/logger"
	"remotebuild/internal/poll"
	"remotebuild/internal/summary"
)

// Tracker follows one build submission from queue item to terminal state.
// Each phase blocks until it transitions or its polling budget runs out.
type Tracker struct {
	client     *Client
	buildToken string
	opts       poll.Options
}

var _ engine.CIEngine = (*Tracker)(nil)

// NewTracker creates a Tracker polling with the configured cadence
func NewTracker(client *Client, cfg *config.Config) *Tracker {
	return &Tracker{
		client:     client,
		buildToken: cfg.Jenkins.BuildToken,
		opts: poll.Options{
			Interval: time.Duration(cfg.Poll.IntervalSeconds) * time.Second,
			Timeout:  time.Duration(cfg.Poll.TimeoutSeconds) * time.Second,
		},
	}
}

// runCheck is the outcome of the running-confirmation phase
type runCheck struct {
	running  bool
	finished bool
	result   string
}

// TriggerAndTrack implements engine.CIEngine
func (t *Tracker) TriggerAndTrack(ctx context.Context, req engine.TrackRequest, rec *summary.Recorder) (engine.Outcome, error) {
	out := engine.Outcome{State: engine.StateFailed}

	if req.Job == "" {
		out.Message = "job name cannot be empty"
		return out, errors.New(out.Message)
	}

	rec.ServerURL(t.client.BaseURL())

	// Phase 1: submit. No polling; a trigger response without a queue
	// location means nothing was queued and there is nothing to track.
	queueURL, err := t.submit(ctx, req)
	if err != nil {
		out.Message = fmt.Sprintf("submission failed: %v", err)
		logger.Error("Build submission failed", "job", req.Job, "error", err)
		return out, err
	}
	out.State = engine.StateQueued
	out.QueueURL = queueURL
	out.QueueNumber = queueNumber(queueURL)
	rec.QueueNumber(out.QueueNumber)
	logger.Info("Build queued", "job", req.Job, "queue_url", queueURL, "queue_number", out.QueueNumber)

	// Phase 2: poll the queue item until an executor picks it up
	buildURL, err := t.resolveQueue(ctx, queueURL)
	if err != nil {
		if errors.Is(err, poll.ErrTimeout) {
			out.State = engine.StateTimedOut
			out.Message = "timed out waiting for the queue item to schedule"
		} else {
			out.Message = fmt.Sprintf("queue resolution failed: %v", err)
		}
		logger.Error("Queue item never scheduled", "job", req.Job, "queue_url", queueURL, "error", err)
		return out, err
	}
	out.State = engine.StateScheduled
	out.BuildURL = buildURL
	rec.Scheduled(true)
	rec.BuildURL(buildURL)
	logger.Info("Build scheduled", "job", req.Job, "build_url", buildURL)

	// Phase 3: confirm the build is actually running
	check, err := t.confirmRunning(ctx, buildURL)
	if err != nil {
		if errors.Is(err, poll.ErrTimeout) {
			// One last look before giving up: the build may have
			// finished between polls.
			if st, serr := t.fetchStatus(ctx, buildURL); serr == nil && !st.Building {
				check = runCheck{finished: true, result: st.result()}
			} else {
				out.State = engine.StateTimedOut
				out.Message = "timed out waiting for the build to start"
				logger.Error("Build never confirmed running", "job", req.Job, "build_url", buildURL)
				return out, err
			}
		} else {
			out.Message = fmt.Sprintf("running confirmation failed: %v", err)
			return out, err
		}
	}

	if check.finished {
		// The build ran faster than one poll interval
		out.Result = check.result
		rec.Result(check.result)
		if check.result == ResultSuccess {
			out.State = engine.StateFinishedSuccess
			out.Message = "build finished before the first running check"
			logger.Info("Build finished", "job", req.Job, "result", check.result)
			return out, nil
		}
		out.State = engine.StateFinishedOther
		out.Message = fmt.Sprintf("build finished with result %q", check.result)
		logger.Error("Build finished without success", "job", req.Job, "result", check.result)
		return out, nil
	}

	out.State = engine.StateBuilding
	logger.Info("Build running", "job", req.Job, "build_url", buildURL)

	if !req.Wait {
		out.Message = "build is running; completion not requested"
		return out, nil
	}

	// Phase 4: wait for the build to finish and judge the result
	result, err := t.waitForFinish(ctx, buildURL)
	if err != nil {
		if errors.Is(err, poll.ErrTimeout) {
			out.State = engine.StateTimedOut
			out.Message = "timed out waiting for the build to finish"
		} else {
			out.Message = fmt.Sprintf("completion wait failed: %v", err)
		}
		logger.Error("Build completion wait failed", "job", req.Job, "build_url", buildURL, "error", err)
		return out, err
	}

	out.Result = result
	rec.Result(result)
	if result == ResultSuccess {
		out.State = engine.StateFinishedSuccess
		out.Message = "build finished successfully"
		logger.Info("Build finished", "job", req.Job, "result", result)
		return out, nil
	}
	out.State = engine.StateFinishedOther
	if result == "" {
		out.Message = "build finished with unknown result"
	} else {
		out.Message = fmt.Sprintf("build finished with result %q", result)
	}
	logger.Error("Build finished without success", "job", req.Job, "result", result)
	return out, nil
}

// submit POSTs the build-with-parameters request and extracts the queue
// location from the response headers
func (t *Tracker) submit(ctx context.Context, req engine.TrackRequest) (string, error) {
	path := fmt.Sprintf("/job/%s/buildWithParameters", url.PathEscape(req.Job))
	headers, err := t.client.trigger(ctx, path, buildQuery(req.Parameters, t.buildToken))
	if err != nil {
		return "", err
	}
	return queueLocation(headers)
}

// resolveQueue polls the queue item until executable.url appears
func (t *Tracker) resolveQueue(ctx context.Context, queueURL string) (string, error) {
	return poll.Until(ctx, func(ctx context.Context) (string, bool, error) {
		body, err := t.client.statusJSON(ctx, queueURL)
		if err != nil {
			return "", false, err
		}
		item, err := parseQueueItem(body)
		if err != nil {
			return "", false, err
		}
		if item.Executable == nil || item.Executable.URL == "" {
			return "", false, nil
		}
		return item.Executable.URL, true, nil
	}, t.opts)
}

// confirmRunning polls the build until it is observed running, or until it
// carries a result, which means it already finished. A building=false
// without a result keeps polling; false is not sticky before true is seen.
func (t *Tracker) confirmRunning(ctx context.Context, buildURL string) (runCheck, error) {
	return poll.Until(ctx, func(ctx context.Context) (runCheck, bool, error) {
		st, err := t.fetchStatus(ctx, buildURL)
		if err != nil {
			return runCheck{}, false, err
		}
		if st.Building {
			return runCheck{running: true}, true, nil
		}
		if st.Result != nil {
			return runCheck{finished: true, result: st.result()}, true, nil
		}
		return runCheck{}, false, nil
	}, t.opts)
}

// waitForFinish polls until building goes false, then fetches the result
// once more. The final decision rests on the result field alone.
func (t *Tracker) waitForFinish(ctx context.Context, buildURL string) (string, error) {
	_, err := poll.Until(ctx, func(ctx context.Context) (struct{}, bool, error) {
		st, err := t.fetchStatus(ctx, buildURL)
		if err != nil {
			return struct{}{}, false, err
		}
		return struct{}{}, !st.Building, nil
	}, t.opts)
	if err != nil {
		return "", err
	}

	st, err := t.fetchStatus(ctx, buildURL)
	if err != nil {
		return "", err
	}
	return st.result(), nil
}

// fetchStatus retrieves and decodes one build status document
func (t *Tracker) fetchStatus(ctx context.Context, buildURL string) (buildStatus, error) {
	body, err := t.client.statusJSON(ctx, buildURL)
	if err != nil {
		return buildStatus{}, err
	}
	return parseBuildStatus(body)
}
