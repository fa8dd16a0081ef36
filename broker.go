package sim

import "strings"

// Broker maps topics to subscriber lists. It is a pure routing table:
// message storage lives in the kernel's event queue.
//
// Delivery order within a timestamp is observable, so subscriber enumeration
// must be deterministic. Exact-topic subscribers are kept in
// subscription-registration order; wildcard subscribers follow, in the order
// their patterns were first registered. No hash-map iteration ever reaches
// the output.
type Broker struct {
	exact        map[Topic]*subscriberList
	patterns     []*patternEntry
	patternIndex map[Topic]*patternEntry
}

type subscriberList struct {
	order  []AgentID
	member map[AgentID]struct{}
}

type patternEntry struct {
	pattern Topic
	subs    *subscriberList
}

func newSubscriberList() *subscriberList {
	return &subscriberList{member: make(map[AgentID]struct{})}
}

// add appends the agent, keeping registration order. A second add is a no-op.
func (l *subscriberList) add(id AgentID) {
	if _, ok := l.member[id]; ok {
		return
	}
	l.member[id] = struct{}{}
	l.order = append(l.order, id)
}

func (l *subscriberList) remove(id AgentID) {
	if _, ok := l.member[id]; !ok {
		return
	}
	delete(l.member, id)
	for i, sub := range l.order {
		if sub == id {
			l.order = append(l.order[:i], l.order[i+1:]...)
			break
		}
	}
}

// NewBroker creates an empty routing table.
func NewBroker() *Broker {
	return &Broker{
		exact:        make(map[Topic]*subscriberList),
		patternIndex: make(map[Topic]*patternEntry),
	}
}

// Subscribe registers the agent for a topic, or for a wildcard pattern when
// the topic contains "*" ("AAPL.*", "*.trades", "*"). Idempotent.
func (b *Broker) Subscribe(id AgentID, topic Topic) {
	if strings.Contains(string(topic), "*") {
		entry, ok := b.patternIndex[topic]
		if !ok {
			entry = &patternEntry{pattern: topic, subs: newSubscriberList()}
			b.patternIndex[topic] = entry
			b.patterns = append(b.patterns, entry)
		}
		entry.subs.add(id)
		return
	}

	subs, ok := b.exact[topic]
	if !ok {
		subs = newSubscriberList()
		b.exact[topic] = subs
	}
	subs.add(id)
}

// Unsubscribe removes exactly the pairing; no-op if absent.
func (b *Broker) Unsubscribe(id AgentID, topic Topic) {
	if strings.Contains(string(topic), "*") {
		if entry, ok := b.patternIndex[topic]; ok {
			entry.subs.remove(id)
		}
		return
	}
	if subs, ok := b.exact[topic]; ok {
		subs.remove(id)
	}
}

// Subscribers enumerates the agents subscribed to a topic: exact
// subscriptions first in registration order, then pattern matches in
// pattern-registration order. An agent appears at most once, at its first
// position.
func (b *Broker) Subscribers(topic Topic) []AgentID {
	var out []AgentID
	seen := make(map[AgentID]struct{})

	if subs, ok := b.exact[topic]; ok {
		for _, id := range subs.order {
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}

	for _, entry := range b.patterns {
		if !matchesPattern(topic, entry.pattern) {
			continue
		}
		for _, id := range entry.subs.order {
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}

	return out
}

// matchesPattern checks a topic against a wildcard pattern. Supported forms:
// "*" (everything), "prefix.*", "*.suffix", and exact equality otherwise.
func matchesPattern(topic, pattern Topic) bool {
	if pattern == "*" {
		return true
	}

	t, p := string(topic), string(pattern)

	if !strings.Contains(p, "*") {
		return t == p
	}

	if strings.HasSuffix(p, ".*") {
		prefix := p[:len(p)-2]
		return t == prefix || strings.HasPrefix(t, prefix+".")
	}

	if strings.HasPrefix(p, "*.") {
		return strings.HasSuffix(t, p[1:])
	}

	return false
}
