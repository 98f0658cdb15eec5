package repository

// KeyPrefix - префиксы для разных типов ключей
type KeyPrefix string

const (
	PrefixURL      KeyPrefix = "url" // url:shortCode, hash of the mapping
	PrefixSequence KeyPrefix = "seq" // seq:urls, id counter
)

// KeyBuilder - построитель ключей Redis
type KeyBuilder struct {
	namespace string // Опциональный namespace для multi-tenancy
}

func NewKeyBuilder(namespace string) *KeyBuilder {
	return &KeyBuilder{namespace: namespace}
}

// Build создает ключ с префиксом и опциональным namespace
func (k *KeyBuilder) Build(prefix KeyPrefix, parts ...string) string {
	key := string(prefix)

	if k.namespace != "" {
		key = k.namespace + ":" + key
	}

	for _, part := range parts {
		key += ":" + part
	}

	return key
}

func (k *KeyBuilder) URL(shortCode string) string {
	return k.Build(PrefixURL, shortCode)
}

func (k *KeyBuilder) Sequence() string {
	return k.Build(PrefixSequence, "urls")
}
