package controllers

import (
	"encoding/json"
	"net/http"

	"stagebased/models"

	"github.com/gin-gonic/gin"
)

// SubscriptionRequestHook is the "subscriptionrequest.added" webhook body.
type SubscriptionRequestHook struct {
	Hook map[string]any  `json:"hook"`
	Data json.RawMessage `json:"data"`
}

// POST /api/v1/subscriptions/request
func CreateSubscriptionRequest(c *gin.Context) {
	var hook SubscriptionRequestHook
	if err := c.ShouldBindJSON(&hook); err != nil {
		RespondError(c, err.Error(), http.StatusBadRequest)
		return
	}
	if len(hook.Data) == 0 || string(hook.Data) == "null" {
		c.JSON(http.StatusBadRequest, gin.H{"data": []string{"This field is required."}})
		return
	}

	sub := models.Subscription{Active: true}
	if err := json.Unmarshal(hook.Data, &sub); err != nil {
		RespondError(c, err.Error(), http.StatusBadRequest)
		return
	}
	if _, err := storeSubscription(c, sub); err != nil {
		return
	}
	RespondCreated(c, gin.H{"accepted": true})
}
