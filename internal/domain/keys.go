package domain

// KeyPrefix namespaces every backing-store key written by this service.
const KeyPrefix = "lexivec:"
