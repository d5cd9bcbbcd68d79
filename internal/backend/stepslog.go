package backend

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/walkthrough/walkthrough/internal/session"
)

const logDateLayout = "2006-01-02"

// LogSteps adds steps to today's step log of the session user.
//
// The backend answers 409 when today's entry already exists. The client then
// reads the latest entry, adds steps to it and patches the total. The read
// and the patch are not atomic: two concurrent calls may lose an update.
func (c *Client) LogSteps(ctx context.Context, sess session.Session, steps int) (*StepsResult, error) {
	if steps <= 0 {
		steps = DefaultStepsAmount
	}
	today := c.now().UTC().Format(logDateLayout)
	userID := userIDValue(sess)

	resp, err := c.send(ctx, c.writes, sess, http.MethodPost, "/stepslog", StepsLog{
		UserID:         userID,
		LogDate:        today,
		DistanceWalked: steps,
	})
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusConflict {
		defer resp.Body.Close()
		if !isOK(resp) {
			return nil, errorFromResponse("log steps", resp)
		}
		drain(resp)
		c.logger.Info().Str("user_id", sess.UserID).Int("steps", steps).Msg("step log created")
		return &StepsResult{StepsAdded: steps, Total: steps}, nil
	}
	drain(resp)
	resp.Body.Close()

	total := c.lastStepsTotal(ctx, sess) + steps

	resp, err = c.send(ctx, c.writes, sess, http.MethodPatch, "/stepslog", StepsLog{
		UserID:         userID,
		LogDate:        today,
		DistanceWalked: total,
	})
	if err != nil {
		return nil, err
	}

	if !isOK(resp) {
		drain(resp)
		resp.Body.Close()
		c.logger.Debug().Int("status", resp.StatusCode).Msg("step log patch refused, trying per-user path")

		resp, err = c.send(ctx, c.writes, sess, http.MethodPatch, "/stepslog/"+url.PathEscape(sess.UserID), StepsLog{
			LogDate:        today,
			DistanceWalked: total,
		})
		if err != nil {
			return nil, err
		}
	}
	defer resp.Body.Close()

	if !isOK(resp) {
		return nil, errorFromResponse("update step log", resp)
	}
	drain(resp)

	c.logger.Info().Str("user_id", sess.UserID).Int("steps", steps).Int("total", total).Msg("step log updated")
	return &StepsResult{StepsAdded: steps, Total: total, Updated: true}, nil
}

// lastStepsTotal returns the most recent logged total. Any failure counts as 0.
func (c *Client) lastStepsTotal(ctx context.Context, sess session.Session) int {
	path := "/stepslog/" + url.PathEscape(sess.UserID) + "?limit=1&skip=0"
	resp, err := c.send(ctx, c.reads, sess, http.MethodGet, path, nil)
	if err != nil {
		c.logger.Warn().Err(err).Msg("reading last step log failed, assuming 0")
		return 0
	}
	defer resp.Body.Close()

	if !isOK(resp) {
		drain(resp)
		return 0
	}

	var entries []struct {
		DistanceWalked FlexInt `json:"distance_walked"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil || len(entries) == 0 {
		return 0
	}
	return int(entries[0].DistanceWalked)
}

// userIDValue sends numeric ids as JSON numbers.
func userIDValue(sess session.Session) any {
	if id, ok := sess.NumericUserID(); ok {
		return id
	}
	return sess.UserID
}
