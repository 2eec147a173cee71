package kafka

// TopicPrefix namespaces every topic published by the site backend.
const TopicPrefix = "clinic"

// Topic builds a topic name of the form "clinic.<domain>.<action>".
func Topic(domain, action string) string {
	return TopicPrefix + "." + domain + "." + action
}
