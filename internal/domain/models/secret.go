// Package models defines the domain models for the GTS token service.
// This file contains the consumer credential model retrieved from the
// upstream gateway.
package models

// ConsumerRef identifies the consumer a credential belongs to, as reported
// by the upstream gateway itself.
// ConsumerRef 标识凭证所属的消费者，由上游网关自身报告。
type ConsumerRef struct {
	ID string `json:"id"`
}

// ConsumerSecret is the per-consumer HMAC signing credential fetched from or
// provisioned on the upstream gateway. The JSON tags match both the upstream
// wire format and the cache serialization.
// ConsumerSecret 是从上游网关获取或在其上创建的消费者 HMAC 签名凭证。
type ConsumerSecret struct {
	// KeyID is the credential key, carried as the "key" claim of issued
	// tokens so verifiers can select the right secret.
	KeyID string `json:"key"`

	// Secret is the shared HMAC secret. Never logged in clear text.
	Secret string `json:"secret"`

	// Consumer is the owning consumer as reported by the upstream.
	// May be nil when the upstream omits it.
	Consumer *ConsumerRef `json:"consumer,omitempty"`
}

// BelongsTo reports whether the embedded consumer reference matches the
// given consumer id. Credentials without a reference match any id, since
// there is nothing to check against.
// BelongsTo 报告凭证内嵌的消费者引用是否与给定的消费者 ID 匹配。
func (s *ConsumerSecret) BelongsTo(consumerID string) bool {
	if s.Consumer == nil || s.Consumer.ID == "" {
		return true
	}
	return s.Consumer.ID == consumerID
}

// HasMaterial reports whether the credential carries usable signing material.
func (s *ConsumerSecret) HasMaterial() bool {
	return s != nil && s.KeyID != "" && s.Secret != ""
}
