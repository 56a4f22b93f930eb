package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/joshua-takyi/eventhub/internal/helpers"
	"github.com/joshua-takyi/eventhub/internal/services"
)

func JoinEvent(ms *services.MembershipService) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := currentUser(c)
		if !ok {
			return
		}
		eventID := c.Param("id")
		if err := ms.Join(c.Request.Context(), eventID, claims.UserID); err != nil {
			respondError(c, err, "could not join event")
			return
		}
		n, err := ms.LiveAttendeeCount(c.Request.Context(), eventID)
		if err != nil {
			// the join itself committed
			c.JSON(http.StatusCreated, helpers.SuccessResponse(nil, "joined event"))
			return
		}
		c.JSON(http.StatusCreated, helpers.SuccessResponse(gin.H{"attendee_count": n}, "joined event"))
	}
}

func LeaveEvent(ms *services.MembershipService) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := currentUser(c)
		if !ok {
			return
		}
		if err := ms.Leave(c.Request.Context(), c.Param("id"), claims.UserID); err != nil {
			respondError(c, err, "could not leave event")
			return
		}
		c.JSON(http.StatusOK, helpers.SuccessResponse(nil, "left event"))
	}
}

func EventAttendeeCount(ms *services.MembershipService) gin.HandlerFunc {
	return func(c *gin.Context) {
		n, err := ms.LiveAttendeeCount(c.Request.Context(), c.Param("id"))
		if err != nil {
			respondError(c, err, "failed to count attendees")
			return
		}
		c.JSON(http.StatusOK, helpers.SuccessResponse(gin.H{"attendee_count": n}, ""))
	}
}

func ListAttendees(ms *services.MembershipService) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := currentUser(c)
		if !ok {
			return
		}
		attendees, err := ms.ListAttendees(c.Request.Context(), c.Param("id"), claims.UserID)
		if err != nil {
			respondError(c, err, "failed to list attendees")
			return
		}
		c.JSON(http.StatusOK, helpers.ListResponse(attendees, len(attendees), ""))
	}
}

func RemoveAttendee(ms *services.MembershipService) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := currentUser(c)
		if !ok {
			return
		}
		err := ms.RemoveAttendee(c.Request.Context(), c.Param("id"), claims.UserID, c.Param("user_id"))
		if err != nil {
			respondError(c, err, "failed to remove attendee")
			return
		}
		c.JSON(http.StatusOK, helpers.SuccessResponse(nil, "attendee removed"))
	}
}

// MyEvents is the caller's timetable.
func MyEvents(ms *services.MembershipService) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := currentUser(c)
		if !ok {
			return
		}
		events, err := ms.JoinedEvents(c.Request.Context(), claims.UserID)
		if err != nil {
			respondError(c, err, "failed to load your timetable")
			return
		}
		c.JSON(http.StatusOK, helpers.ListResponse(events, len(events), ""))
	}
}

func GetRecommendations(rs *services.RecommendationService) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := currentUser(c)
		if !ok {
			return
		}
		rec, err := rs.RecommendForUser(c.Request.Context(), claims.UserID, claimsGender(claims))
		if err != nil {
			respondError(c, err, "failed to load recommendations")
			return
		}
		c.JSON(http.StatusOK, helpers.SuccessResponse(rec, rec.Reason))
	}
}
