package controllers

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/phillip/event-finder-go/middleware"
	"github.com/phillip/event-finder-go/services"
	"github.com/phillip/event-finder-go/utils"
)

// eventRequest accepts JSON or form bodies. Dates arrive as strings. There is
// no _id or ownerId field, so those keys in a body are ignored.
type eventRequest struct {
	Title                *string  `json:"title" form:"title"`
	Description          *string  `json:"description" form:"description"`
	Location             *string  `json:"location" form:"location"`
	Date                 *string  `json:"date" form:"date"`
	LastRegistrationDate *string  `json:"lastRegistrationDate" form:"lastRegistrationDate"`
	Category             *string  `json:"category" form:"category"`
	SubCategory          *string  `json:"subCategory" form:"subCategory"`
	Fee                  *float64 `json:"fee" form:"fee"`
	ImageURL             *string  `json:"imageURL" form:"imageURL"`
	InstagramLink        *string  `json:"instagramLink" form:"instagramLink"`
	WebsiteLink          *string  `json:"websiteLink" form:"websiteLink"`
	RegistrationLink     *string  `json:"registrationLink" form:"registrationLink"`
	MaxParticipants      *int     `json:"maxParticipants" form:"maxParticipants"`
}

func parseOptionalDate(field string, raw *string) (*time.Time, string) {
	if raw == nil || *raw == "" {
		return nil, ""
	}
	t, err := utils.ParseDate(*raw)
	if err != nil {
		return nil, "Invalid " + field + ": use RFC3339 or YYYY-MM-DD."
	}
	return &t, ""
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}

func (r eventRequest) createInput() (services.CreateEventInput, string) {
	date, msg := parseOptionalDate("date", r.Date)
	if msg != "" {
		return services.CreateEventInput{}, msg
	}
	lastReg, msg := parseOptionalDate("lastRegistrationDate", r.LastRegistrationDate)
	if msg != "" {
		return services.CreateEventInput{}, msg
	}
	return services.CreateEventInput{
		Title:                deref(r.Title),
		Description:          deref(r.Description),
		Location:             deref(r.Location),
		Date:                 date,
		LastRegistrationDate: lastReg,
		Category:             deref(r.Category),
		SubCategory:          deref(r.SubCategory),
		Fee:                  deref(r.Fee),
		ImageURL:             deref(r.ImageURL),
		InstagramLink:        deref(r.InstagramLink),
		WebsiteLink:          deref(r.WebsiteLink),
		RegistrationLink:     deref(r.RegistrationLink),
		MaxParticipants:      deref(r.MaxParticipants),
	}, ""
}

func (r eventRequest) updateInput() (services.UpdateEventInput, string) {
	in := services.UpdateEventInput{
		Title:            r.Title,
		Description:      r.Description,
		Location:         r.Location,
		Category:         r.Category,
		SubCategory:      r.SubCategory,
		Fee:              r.Fee,
		ImageURL:         r.ImageURL,
		InstagramLink:    r.InstagramLink,
		WebsiteLink:      r.WebsiteLink,
		RegistrationLink: r.RegistrationLink,
		MaxParticipants:  r.MaxParticipants,
	}
	if r.Date != nil {
		if *r.Date == "" {
			// A cleared date is a blank required field.
			in.Date = &time.Time{}
		} else {
			date, msg := parseOptionalDate("date", r.Date)
			if msg != "" {
				return in, msg
			}
			in.Date = date
		}
	}
	lastReg, msg := parseOptionalDate("lastRegistrationDate", r.LastRegistrationDate)
	if msg != "" {
		return in, msg
	}
	in.LastRegistrationDate = lastReg
	return in, ""
}

// ---------------- LIST ----------------
func ListEvents(svc *services.EventService) gin.HandlerFunc {
	return func(c *gin.Context) {
		filter, err := services.ParseListFilter(
			c.Query("ownerId"),
			c.Query("location"),
			c.Query("userLat"),
			c.Query("userLon"),
			c.Query("radius"),
		)
		if err != nil {
			respondError(c, err)
			return
		}

		events, err := svc.List(c.Request.Context(), filter)
		if err != nil {
			respondError(c, err)
			return
		}

		etag := utils.ListETag(events)
		if match := c.GetHeader("If-None-Match"); match != "" && match == etag {
			c.Status(http.StatusNotModified)
			return
		}
		c.Header("ETag", etag)
		if latest := utils.LastModified(events); !latest.IsZero() {
			c.Header("Last-Modified", latest.UTC().Format(http.TimeFormat))
		}

		c.JSON(http.StatusOK, events)
	}
}

// ---------------- GET ----------------
func GetEvent(svc *services.EventService) gin.HandlerFunc {
	return func(c *gin.Context) {
		event, err := svc.Get(c.Request.Context(), c.Param("id"))
		if err != nil {
			respondError(c, err)
			return
		}

		etag := utils.GenerateETag(event.ID, event.UpdatedAt)
		if match := c.GetHeader("If-None-Match"); match != "" && match == etag {
			c.Status(http.StatusNotModified)
			return
		}
		c.Header("ETag", etag)

		c.JSON(http.StatusOK, event)
	}
}

// ---------------- DISTANCE ----------------
func EventDistance(svc *services.EventService) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := services.ParseUserPoint(c.Query("userLat"), c.Query("userLon"))
		if err != nil {
			respondError(c, err)
			return
		}

		route, err := svc.RoadDistance(c.Request.Context(), c.Param("id"), user)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, route)
	}
}

// ---------------- CREATE ----------------
func CreateEvent(svc *services.EventService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req eventRequest
		if err := c.ShouldBind(&req); err != nil {
			badRequest(c, "Invalid request body.")
			return
		}
		in, msg := req.createInput()
		if msg != "" {
			badRequest(c, msg)
			return
		}

		event, err := svc.Create(c.Request.Context(), middleware.CallerID(c), in)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, event)
	}
}

// ---------------- UPDATE ----------------
func UpdateEvent(svc *services.EventService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req eventRequest
		if err := c.ShouldBind(&req); err != nil {
			badRequest(c, "Invalid request body.")
			return
		}
		in, msg := req.updateInput()
		if msg != "" {
			badRequest(c, msg)
			return
		}

		updated, err := svc.Update(c.Request.Context(), middleware.CallerID(c), c.Param("id"), in)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, updated)
	}
}

// ---------------- DELETE ----------------
func DeleteEvent(svc *services.EventService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body struct {
			Reason string `json:"reason"`
		}
		// Chunked bodies report ContentLength -1, so only NoBody is skipped.
		if c.Request.Body != nil && c.Request.Body != http.NoBody {
			if err := c.ShouldBindJSON(&body); err != nil && !errors.Is(err, io.EOF) {
				badRequest(c, "Invalid request body.")
				return
			}
		}

		record, err := svc.Delete(c.Request.Context(), middleware.CallerID(c), c.Param("id"), body.Reason)
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"message": "Event archived and deleted successfully from active list.",
			"id":      record.OriginalEventID.Hex(),
		})
	}
}
