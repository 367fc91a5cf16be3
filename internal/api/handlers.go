package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/roach88/coffeematch/internal/engine"
	"github.com/roach88/coffeematch/internal/model"
)

// SubscribeRequest is the optional body of POST /participants/:id/subscribe.
type SubscribeRequest struct {
	DisplayName string `json:"display_name"`
	Username    string `json:"username"`
}

// AnswerRequest is the body of POST /follow-ups/:id/answer.
type AnswerRequest struct {
	Answer string `json:"answer" binding:"required"`
}

// RematchRequest is the body of POST /matches/:id/rematch.
type RematchRequest struct {
	ParticipantID string `json:"participant_id" binding:"required"`
}

// SubscribeHandler handles POST /participants/:id/subscribe. The body is optional.
func SubscribeHandler(eng *engine.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req SubscribeRequest
		if c.Request.ContentLength != 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				badRequest(c, "invalid body: "+err.Error())
				return
			}
		}
		p, err := eng.Subscribe(c.Request.Context(), c.Param("id"), model.Profile{
			DisplayName: req.DisplayName,
			Username:    req.Username,
		})
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, p)
	}
}

// UnsubscribeHandler handles DELETE /participants/:id/subscription.
func UnsubscribeHandler(eng *engine.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := eng.Unsubscribe(c.Request.Context(), c.Param("id")); err != nil {
			respondError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

// UnreachableHandler handles POST /participants/:id/unreachable.
func UnreachableHandler(eng *engine.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := eng.MarkUnreachable(c.Request.Context(), c.Param("id")); err != nil {
			respondError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

// ListSubscribersHandler handles GET /participants.
func ListSubscribersHandler(eng *engine.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		subs, err := eng.ListSubscribers(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		if subs == nil {
			subs = []model.Participant{}
		}
		c.JSON(http.StatusOK, gin.H{"participants": subs, "count": len(subs)})
	}
}

// ParticipantHandler handles GET /participants/:id.
func ParticipantHandler(eng *engine.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		st, err := eng.GetParticipantStatus(c.Request.Context(), c.Param("id"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, st)
	}
}

// StatusHandler handles GET /status.
func StatusHandler(eng *engine.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		st, err := eng.GetStatus(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, st)
	}
}

// RunRoundHandler handles POST /rounds/:period.
func RunRoundHandler(eng *engine.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		res, err := eng.RunRound(c.Request.Context(), c.Param("period"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, res)
	}
}

// DispatchFollowUpsHandler handles POST /rounds/:period/follow-ups.
func DispatchFollowUpsHandler(eng *engine.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		res, err := eng.DispatchFollowUps(c.Request.Context(), c.Param("period"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, res)
	}
}

// AnswerHandler handles POST /follow-ups/:id/answer.
func AnswerHandler(eng *engine.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req AnswerRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "invalid body: "+err.Error())
			return
		}
		answer, ok := model.ParseAnswer(req.Answer)
		if !ok {
			badRequest(c, "answer must be yes or no")
			return
		}
		res, err := eng.RecordAnswer(c.Request.Context(), c.Param("id"), answer)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, res)
	}
}

// RematchHandler handles POST /matches/:id/rematch and answers 202.
func RematchHandler(eng *engine.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req RematchRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "invalid body: "+err.Error())
			return
		}
		if err := eng.RequestRematch(c.Request.Context(), c.Param("id"), req.ParticipantID); err != nil {
			respondError(c, err)
			return
		}
		c.Status(http.StatusAccepted)
	}
}

// InactivityHandler handles POST /inactivity/:period.
func InactivityHandler(eng *engine.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		res, err := eng.RunInactivityCheck(c.Request.Context(), c.Param("period"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, res)
	}
}
