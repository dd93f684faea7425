package tools

import (
	"context"
	"net/url"
	"strings"

	"stagebased/errors"
)

// IdentityStore resolves recipients and their delivery addresses.
type IdentityStore interface {
	GetIdentity(ctx context.Context, id string) (*Identity, error)
	GetDefaultAddress(ctx context.Context, id, addrType string) (string, error)
}

type Identity struct {
	ID                 string         `json:"id"`
	Details            map[string]any `json:"details"`
	CommunicateThrough *string        `json:"communicate_through"`
}

func (i *Identity) detail(key string) string {
	if i == nil || i.Details == nil {
		return ""
	}
	v, _ := i.Details[key].(string)
	return strings.TrimSpace(v)
}

// Through returns the linked identity that receives messages on this
// identity's behalf, or "". The link may sit on the record or in details.
func (i *Identity) Through() string {
	if i == nil {
		return ""
	}
	if i.CommunicateThrough != nil && strings.TrimSpace(*i.CommunicateThrough) != "" {
		return strings.TrimSpace(*i.CommunicateThrough)
	}
	return i.detail("communicate_through")
}

func (i *Identity) PreferredMsgType() string  { return i.detail("preferred_msg_type") }
func (i *Identity) PreferredLanguage() string { return i.detail("preferred_language") }
func (i *Identity) ReceiverRole() string      { return i.detail("receiver_role") }

type addressList struct {
	Count   int `json:"count"`
	Results []struct {
		Address string `json:"address"`
	} `json:"results"`
}

type IdentityClient struct {
	*Client
}

func NewIdentityClient(c *Client) *IdentityClient {
	return &IdentityClient{Client: c}
}

func (c *IdentityClient) GetIdentity(ctx context.Context, id string) (*Identity, error) {
	var out Identity
	if err := c.get(ctx, "identities/"+url.PathEscape(id)+"/", nil, &out); err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == 404 {
			return nil, errors.Mark(errors.Newf("identity %s not found", id), errors.ErrLookup)
		}
		return nil, err
	}
	if out.ID == "" {
		out.ID = id
	}
	return &out, nil
}

// GetDefaultAddress returns the identity's default address of addrType.
// No address at all is a lookup failure.
func (c *IdentityClient) GetDefaultAddress(ctx context.Context, id, addrType string) (string, error) {
	q := url.Values{}
	q.Set("default", "True")
	var out addressList
	path := "identities/" + url.PathEscape(id) + "/addresses/" + url.PathEscape(addrType)
	if err := c.get(ctx, path, q, &out); err != nil {
		return "", err
	}
	for _, r := range out.Results {
		if strings.TrimSpace(r.Address) != "" {
			return r.Address, nil
		}
	}
	return "", errors.Mark(errors.Newf("identity %s has no default %s address", id, addrType), errors.ErrLookup)
}
