package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/joshua-takyi/eventhub/internal/helpers"
	"github.com/joshua-takyi/eventhub/internal/models"
	"github.com/joshua-takyi/eventhub/internal/services"
)

func CreateEvent(es *services.EventService) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := currentUser(c)
		if !ok {
			return
		}
		var args models.CreateEventArgs
		if err := c.ShouldBindJSON(&args); err != nil {
			badRequest(c, err.Error(), "invalid event payload")
			return
		}

		event, err := es.CreateEvent(c.Request.Context(), claims.UserID, args)
		if err != nil {
			respondError(c, err, "failed to create event")
			return
		}
		c.JSON(http.StatusCreated, helpers.SuccessResponse(event, "event created"))
	}
}

func ListEvents(es *services.EventService) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := currentUser(c)
		if !ok {
			return
		}
		events, err := es.ListEvents(c.Request.Context(), claimsGender(claims))
		if err != nil {
			respondError(c, err, "failed to list events")
			return
		}
		c.JSON(http.StatusOK, helpers.ListResponse(events, len(events), ""))
	}
}

func SearchEvents(es *services.EventService) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := currentUser(c)
		if !ok {
			return
		}
		q := strings.TrimSpace(c.Query("q"))
		events, err := es.Search(c.Request.Context(), q, claimsGender(claims))
		if err != nil {
			respondError(c, err, "failed to search events")
			return
		}
		c.JSON(http.StatusOK, helpers.ListResponse(events, len(events), ""))
	}
}

func GetEvent(es *services.EventService) gin.HandlerFunc {
	return func(c *gin.Context) {
		event, err := es.GetEvent(c.Request.Context(), c.Param("id"))
		if err != nil {
			respondError(c, err, "failed to load event")
			return
		}
		c.JSON(http.StatusOK, helpers.SuccessResponse(event, ""))
	}
}

func ListMyEvents(es *services.EventService) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := currentUser(c)
		if !ok {
			return
		}
		events, err := es.ListByOwner(c.Request.Context(), claims.UserID)
		if err != nil {
			respondError(c, err, "failed to list your events")
			return
		}
		c.JSON(http.StatusOK, helpers.ListResponse(events, len(events), ""))
	}
}

func UpdateEvent(es *services.EventService) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := currentUser(c)
		if !ok {
			return
		}
		var args models.UpdateEventArgs
		if err := c.ShouldBindJSON(&args); err != nil {
			badRequest(c, err.Error(), "invalid event payload")
			return
		}

		event, err := es.UpdateEvent(c.Request.Context(), claims.UserID, c.Param("id"), args)
		if err != nil {
			respondError(c, err, "failed to update event")
			return
		}
		c.JSON(http.StatusOK, helpers.SuccessResponse(event, "event updated, attendees will be notified"))
	}
}

func DeleteEvent(es *services.EventService) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := currentUser(c)
		if !ok {
			return
		}
		if err := es.DeleteEvent(c.Request.Context(), claims.UserID, c.Param("id")); err != nil {
			respondError(c, err, "failed to delete event")
			return
		}
		c.JSON(http.StatusOK, helpers.SuccessResponse(nil, "event deleted"))
	}
}

// SetEventImage accepts either a multipart "image" file or a JSON body
// {"image": "<url or data URI>"}.
func SetEventImage(es *services.EventService) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := currentUser(c)
		if !ok {
			return
		}

		var source interface{}
		if fh, err := c.FormFile("image"); err == nil {
			f, err := fh.Open()
			if err != nil {
				badRequest(c, err.Error(), "could not read uploaded image")
				return
			}
			defer f.Close()
			source = f
		} else {
			var body struct {
				Image string `json:"image"`
			}
			if err := c.ShouldBindJSON(&body); err != nil || strings.TrimSpace(body.Image) == "" {
				badRequest(c, "image is required", "send a multipart image file or a JSON image field")
				return
			}
			source = body.Image
		}

		event, err := es.SetEventImage(c.Request.Context(), claims.UserID, c.Param("id"), source)
		if err != nil {
			respondError(c, err, "failed to update event image")
			return
		}
		c.JSON(http.StatusOK, helpers.SuccessResponse(event, "event image updated"))
	}
}
