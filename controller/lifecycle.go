package controller

import (
	"context"
	"fmt"
	"time"

	"github.com/zenplay-go/zenplay/codec"
	"github.com/zenplay-go/zenplay/state"
)

// Pause implements spec.md §4.10's pause ordering: halt both players'
// clock-advancing work first, then record the pause boundary on the sync
// controller.
func (c *PlaybackController) Pause() error {
	if c.audioPlayer != nil {
		if err := c.audioPlayer.Pause(); err != nil {
			return fmt.Errorf("controller: pause audio: %w", err)
		}
	}
	if c.videoPlayer != nil {
		c.videoPlayer.Pause()
	}
	c.sync.Pause(time.Now())
	return c.state.Transition(state.Paused)
}

// Resume implements spec.md §4.10's resume ordering: shift clock anchors
// first, then resume both players so they don't immediately observe a
// stale clock.
func (c *PlaybackController) Resume() error {
	c.sync.Resume(time.Now())
	if c.audioPlayer != nil {
		if err := c.audioPlayer.Resume(); err != nil {
			return fmt.Errorf("controller: resume audio: %w", err)
		}
	}
	if c.videoPlayer != nil {
		c.videoPlayer.Resume()
	}
	return c.state.Transition(state.Playing)
}

// Stop implements spec.md §4.10's stop ordering: stop every queue (the
// packet and seek queues here, the frame queues through each player's
// Stop; wakes every blocked producer/consumer), join all worker threads,
// then drain remaining packets via clear(visitor) to release them.
//
// Per DESIGN.md's "Re-open-on-play" decision, Stop does not close the
// underlying demuxer URL: a subsequent facade Play rewinds the same
// already-open codec.Demuxer to position 0 with Seek and builds a fresh
// PlaybackController, rather than constructing a new *reisen.Media.
func (c *PlaybackController) Stop() error {
	if err := c.state.Transition(state.Stopped); err != nil {
		return err
	}

	c.videoPacketQueue.Stop()
	c.audioPacketQueue.Stop()
	c.seekQueue.Stop()
	if c.videoPlayer != nil {
		c.videoPlayer.Stop()
	}
	if c.audioPlayer != nil {
		c.audioPlayer.Stop()
	}
	if c.cancel != nil {
		c.cancel()
	}

	_ = c.Wait()

	c.videoPacketQueue.Clear(func(*codec.Packet) {})
	c.audioPacketQueue.Clear(func(*codec.Packet) {})
	c.seekQueue.Clear(nil)
	return nil
}

// seekTask serializes SeekRequests, implementing the full protocol of
// spec.md §4.10a.
func (c *PlaybackController) seekTask(ctx context.Context) error {
	for {
		req, ok := c.seekQueue.Pop()
		if !ok {
			return nil
		}
		latest := c.drainLatestSeek(req)
		c.runSeek(latest)

		select {
		case <-ctx.Done():
			return nil
		default:
		}
	}
}

// drainLatestSeek implements step 1: pop the request, then drain any
// additional queued requests with try_pop, overwriting latest each time
// (latest-wins coalescing).
func (c *PlaybackController) drainLatestSeek(first *SeekRequest) *SeekRequest {
	latest := first
	for {
		next, ok := c.seekQueue.TryPop()
		if !ok {
			return latest
		}
		latest = next
	}
}

func (c *PlaybackController) runSeek(req *SeekRequest) {
	// Step 2: atomic seeking guard; skip if a seek is already in flight
	// (shouldn't normally happen since seekTask is single-threaded, but
	// guards against re-entrant SeekAsync callers racing this method).
	if !c.seeking.CompareAndSwap(false, true) {
		return
	}
	defer c.seeking.Store(false)

	// Step 3.
	if err := c.state.Transition(state.Seeking); err != nil {
		c.log.Printf("WARNING: seek: cannot enter Seeking from %s: %v", c.state.Current(), err)
		return
	}

	// Step 4: pause both players (not a full Pause(), which would also
	// transition state and touch the sync controller's pause accounting —
	// the seek protocol manages the sync controller itself in step 9).
	if c.audioPlayer != nil {
		_ = c.audioPlayer.Pause()
	}
	if c.videoPlayer != nil {
		c.videoPlayer.Pause()
	}

	// Step 5.
	time.Sleep(seekPauseSettle)

	// Step 6: clear all queues, and invalidate any cached hardware-surface
	// views before the codec framework reallocates surfaces post-seek
	// (spec.md §4.10a line 327).
	c.videoPacketQueue.Clear(nil)
	c.audioPacketQueue.Clear(nil)
	if c.videoPlayer != nil {
		c.videoPlayer.Flush()
		c.videoPlayer.ClearRendererCache()
	}
	if c.audioPlayer != nil {
		c.audioPlayer.Flush()
	}

	// Step 7.
	targetUs := req.TargetMs * 1000
	if err := c.demuxer.Seek(targetUs, req.Backward); err != nil {
		c.log.Printf("WARNING: seek: demuxer.Seek failed: %v", err)
		_ = c.state.Transition(state.Error)
		return
	}

	// Step 8.
	if c.videoDecoder != nil {
		c.videoDecoder.FlushBuffers()
	}
	if c.audioDecoder != nil {
		c.audioDecoder.FlushBuffers()
	}

	// Step 9.
	now := time.Now()
	c.sync.ResetForSeek(req.TargetMs, now)
	if c.videoPlayer != nil {
		c.videoPlayer.ResetTimestamps()
	}
	if c.audioPlayer != nil {
		c.audioPlayer.ResetTimestamps()
	}
	if c.resampler != nil {
		c.resampler.Reset()
	}

	// Step 10.
	if c.audioPlayer != nil {
		c.audioPlayer.Flush()
	}

	// Step 11: restore state.
	switch req.RestoreState {
	case state.Playing:
		if err := c.state.Transition(state.Playing); err != nil {
			c.log.Printf("WARNING: seek: restore to Playing failed: %v", err)
			_ = c.state.Transition(state.Error)
			return
		}
		if c.audioPlayer != nil {
			_ = c.audioPlayer.Resume()
		}
		if c.videoPlayer != nil {
			c.videoPlayer.Resume()
		}
	case state.Paused:
		if err := c.state.Transition(state.Paused); err != nil {
			c.log.Printf("WARNING: seek: restore to Paused failed: %v", err)
			_ = c.state.Transition(state.Error)
		}
	default:
		_ = c.state.Transition(state.Stopped)
	}

	// Step 12: seeking guard cleared via defer above.
}
