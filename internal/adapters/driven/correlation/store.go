// Package correlation maps protocol message identifiers to their pending
// authentication context, on top of the shared key-value cache. An entry
// is consumed at most once; a second lookup for the same identifier is a
// protocol violation (replay or invalid session), never a cache miss.
package correlation

import (
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/willp-bl/eidas-mirror-sub003/internal/core/domain"
	"github.com/willp-bl/eidas-mirror-sub003/internal/core/ports"
)

const keyPrefix = "corr:"

// storedContext is the serialized form of an AuthenticationContext. The
// attribute lists flatten to ordered slices so insertion order survives
// the round trip through the cache.
type storedContext struct {
	Request         storedRequest   `json:"request"`
	RelayState      string          `json:"relay_state,omitempty"`
	RemoteMetadata  string          `json:"remote_metadata,omitempty"`
	State           string          `json:"state"`
	PendingResponse *storedResponse `json:"pending_response,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
}

type storedRequest struct {
	ID                   string            `json:"id"`
	Issuer               string            `json:"issuer"`
	Destination          string            `json:"destination,omitempty"`
	AssertionConsumerURL string            `json:"acs_url,omitempty"`
	ProviderName         string            `json:"provider_name,omitempty"`
	SPID                 string            `json:"sp_id,omitempty"`
	SPType               string            `json:"sp_type,omitempty"`
	CitizenCountry       string            `json:"citizen_country,omitempty"`
	OriginCountry        string            `json:"origin_country,omitempty"`
	Binding              string            `json:"binding,omitempty"`
	FormatVersion        string            `json:"format_version,omitempty"`
	LoA                  string            `json:"loa,omitempty"`
	Comparison           string            `json:"comparison,omitempty"`
	Attributes           []storedAttribute `json:"attributes,omitempty"`
	RelayState           string            `json:"relay_state,omitempty"`
}

type storedResponse struct {
	ID            string            `json:"id"`
	InResponseTo  string            `json:"in_response_to"`
	Issuer        string            `json:"issuer"`
	IssuerCountry string            `json:"issuer_country,omitempty"`
	StatusCode    string            `json:"status_code"`
	SubCode       string            `json:"sub_code,omitempty"`
	StatusMessage string            `json:"status_message,omitempty"`
	LoA           string            `json:"loa,omitempty"`
	Subject       string            `json:"subject,omitempty"`
	Audience      string            `json:"audience,omitempty"`
	NotOnOrAfter  time.Time         `json:"not_on_or_after,omitempty"`
	Attributes    []storedAttribute `json:"attributes,omitempty"`
}

type storedAttribute struct {
	Name          string              `json:"name"`
	FriendlyName  string              `json:"friendly_name,omitempty"`
	Required      bool                `json:"required"`
	Values        []string            `json:"values,omitempty"`
	ComplexValues []map[string]string `json:"complex_values,omitempty"`
	Status        string              `json:"status,omitempty"`
}

// Store is the cache-backed correlation store.
type Store struct {
	cache  ports.KeyValueCache
	ttl    time.Duration
	logger *zap.Logger
}

// New builds a Store over the shared cache. Entries expire after ttl; a
// zero ttl keeps them until explicitly consumed or removed.
func New(cache ports.KeyValueCache, ttl time.Duration, logger *zap.Logger) *Store {
	return &Store{cache: cache, ttl: ttl, logger: logger}
}

// Put stores the in-flight context under id.
func (s *Store) Put(id string, authCtx *domain.AuthenticationContext) error {
	data, err := json.Marshal(encodeContext(authCtx))
	if err != nil {
		return err
	}
	s.cache.Put(keyPrefix+id, data, s.ttl)
	return nil
}

// Consume atomically retrieves and removes the context for id. The
// underlying TakeAndRemove guarantees a second consumer observes absence.
func (s *Store) Consume(id string) (*domain.AuthenticationContext, error) {
	data, ok := s.cache.TakeAndRemove(keyPrefix + id)
	if !ok {
		if s.logger != nil {
			s.logger.Warn("correlation entry absent or already consumed",
				zap.String("id", id))
		}
		return nil, ports.ErrNoCorrelation
	}
	return decode(data)
}

// Peek returns the context without consuming it.
func (s *Store) Peek(id string) (*domain.AuthenticationContext, error) {
	data, ok := s.cache.Get(keyPrefix + id)
	if !ok {
		return nil, ports.ErrNoCorrelation
	}
	return decode(data)
}

// Remove discards the context for id if present.
func (s *Store) Remove(id string) {
	s.cache.Remove(keyPrefix + id)
}

func decode(data []byte) (*domain.AuthenticationContext, error) {
	var sc storedContext
	if err := json.Unmarshal(data, &sc); err != nil {
		return nil, err
	}
	return decodeContext(&sc), nil
}

func encodeContext(authCtx *domain.AuthenticationContext) *storedContext {
	sc := &storedContext{
		RelayState:     authCtx.RelayState,
		RemoteMetadata: authCtx.RemoteMetadataURL,
		State:          string(authCtx.State),
		CreatedAt:      authCtx.CreatedAt,
	}
	if authCtx.Request != nil {
		r := authCtx.Request
		sc.Request = storedRequest{
			ID:                   r.ID,
			Issuer:               r.Issuer,
			Destination:          r.Destination,
			AssertionConsumerURL: r.AssertionConsumerURL,
			ProviderName:         r.ProviderName,
			SPID:                 r.SPID,
			SPType:               string(r.SPType),
			CitizenCountry:       r.CitizenCountry,
			OriginCountry:        r.OriginCountry,
			Binding:              string(r.Binding),
			FormatVersion:        string(r.FormatVersion),
			LoA:                  string(r.LevelOfAssurance),
			Comparison:           string(r.Comparison),
			Attributes:           encodeAttributes(r.RequestedAttributes),
			RelayState:           r.RelayState,
		}
	}
	if authCtx.PendingResponse != nil {
		p := authCtx.PendingResponse
		sc.PendingResponse = &storedResponse{
			ID:            p.ID,
			InResponseTo:  p.InResponseTo,
			Issuer:        p.Issuer,
			IssuerCountry: p.IssuerCountry,
			StatusCode:    p.Status.Code,
			SubCode:       p.Status.SubCode,
			StatusMessage: p.Status.Message,
			LoA:           string(p.LevelOfAssurance),
			Subject:       p.Subject,
			Audience:      p.AudienceRestriction,
			NotOnOrAfter:  p.NotOnOrAfter,
			Attributes:    encodeAttributes(p.Attributes),
		}
	}
	return sc
}

func decodeContext(sc *storedContext) *domain.AuthenticationContext {
	authCtx := &domain.AuthenticationContext{
		RelayState:        sc.RelayState,
		RemoteMetadataURL: sc.RemoteMetadata,
		State:             domain.FlowState(sc.State),
		CreatedAt:         sc.CreatedAt,
	}
	r := sc.Request
	authCtx.Request = &domain.AuthenticationRequest{
		ID:                   r.ID,
		Issuer:               r.Issuer,
		Destination:          r.Destination,
		AssertionConsumerURL: r.AssertionConsumerURL,
		ProviderName:         r.ProviderName,
		SPID:                 r.SPID,
		SPType:               domain.SPType(r.SPType),
		CitizenCountry:       r.CitizenCountry,
		OriginCountry:        r.OriginCountry,
		Binding:              domain.Binding(r.Binding),
		FormatVersion:        domain.FormatVersion(r.FormatVersion),
		LevelOfAssurance:     domain.LevelOfAssurance(r.LoA),
		Comparison:           domain.LoAComparison(r.Comparison),
		RequestedAttributes:  decodeAttributes(r.Attributes),
		RelayState:           r.RelayState,
	}
	if sc.PendingResponse != nil {
		p := sc.PendingResponse
		authCtx.PendingResponse = &domain.AuthenticationResponse{
			ID:            p.ID,
			InResponseTo:  p.InResponseTo,
			Issuer:        p.Issuer,
			IssuerCountry: p.IssuerCountry,
			Status: domain.ResponseStatus{
				Code:    p.StatusCode,
				SubCode: p.SubCode,
				Message: p.StatusMessage,
			},
			LevelOfAssurance:    domain.LevelOfAssurance(p.LoA),
			Subject:             p.Subject,
			AudienceRestriction: p.Audience,
			NotOnOrAfter:        p.NotOnOrAfter,
			Attributes:          decodeAttributes(p.Attributes),
		}
	}
	return authCtx
}

func encodeAttributes(list *domain.PersonalAttributeList) []storedAttribute {
	if list == nil {
		return nil
	}
	out := make([]storedAttribute, 0, list.Len())
	for _, a := range list.All() {
		out = append(out, storedAttribute{
			Name:          a.Name,
			FriendlyName:  a.FriendlyName,
			Required:      a.Required,
			Values:        a.Values,
			ComplexValues: a.ComplexValues,
			Status:        string(a.Status),
		})
	}
	return out
}

func decodeAttributes(attrs []storedAttribute) *domain.PersonalAttributeList {
	list := domain.NewPersonalAttributeList()
	for _, sa := range attrs {
		list.Add(domain.PersonalAttribute{
			Name:          sa.Name,
			FriendlyName:  sa.FriendlyName,
			Required:      sa.Required,
			Values:        sa.Values,
			ComplexValues: sa.ComplexValues,
			Status:        domain.AttributeStatus(sa.Status),
		})
	}
	return list
}

// Ensure Store implements ports.CorrelationStore
var _ ports.CorrelationStore = (*Store)(nil)
