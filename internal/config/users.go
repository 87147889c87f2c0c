package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

var (
	// ErrUserExists is returned by AddUser for an ID already authorized.
	ErrUserExists = errors.New("user is already authorized")
	// ErrUserNotFound is returned by RemoveUser for an unknown ID.
	ErrUserNotFound = errors.New("user is not authorized")
)

const usersKey = "authorized_users"

// AddUser appends u to authorized_users in the file at path. The rest of the
// file, comments included, is preserved.
func AddUser(path string, u AuthorizedUser) error {
	if u.ID == 0 {
		return errors.New("user id must be set")
	}
	return editUsers(path, func(seq *yaml.Node) error {
		if indexOfUser(seq, u.ID) >= 0 {
			return fmt.Errorf("%d: %w", u.ID, ErrUserExists)
		}
		item := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
		item.Content = append(item.Content,
			scalar("!!str", "id"), scalar("!!int", strconv.FormatInt(u.ID, 10)))
		if u.Name != "" {
			item.Content = append(item.Content, scalar("!!str", "name"), scalar("!!str", u.Name))
		}
		seq.Content = append(seq.Content, item)
		return nil
	})
}

// RemoveUser deletes the user with id from authorized_users.
func RemoveUser(path string, id int64) error {
	return editUsers(path, func(seq *yaml.Node) error {
		i := indexOfUser(seq, id)
		if i < 0 {
			return fmt.Errorf("%d: %w", id, ErrUserNotFound)
		}
		seq.Content = append(seq.Content[:i], seq.Content[i+1:]...)
		return nil
	})
}

func editUsers(path string, edit func(seq *yaml.Node) error) error {
	if err := WriteDefault(path); err != nil {
		return err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	if doc.Kind == 0 {
		doc = yaml.Node{Kind: yaml.DocumentNode, Content: []*yaml.Node{{Kind: yaml.MappingNode, Tag: "!!map"}}}
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return errors.New("parse config: top level is not a mapping")
	}

	seq := usersNode(root)
	if err := edit(seq); err != nil {
		return err
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&doc); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}

	cfg, err := Parse(buf.Bytes())
	if err != nil {
		return err
	}
	if err := Validate(cfg); err != nil {
		return err
	}
	return writeAtomic(path, buf.Bytes())
}

// usersNode returns the authorized_users sequence, creating it or
// converting a null or flow-style value as needed.
func usersNode(root *yaml.Node) *yaml.Node {
	for i := 0; i+1 < len(root.Content); i += 2 {
		if root.Content[i].Value != usersKey {
			continue
		}
		seq := root.Content[i+1]
		if seq.Kind != yaml.SequenceNode {
			*seq = yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
		}
		seq.Style = 0
		return seq
	}
	seq := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
	root.Content = append(root.Content, scalar("!!str", usersKey), seq)
	return seq
}

func indexOfUser(seq *yaml.Node, id int64) int {
	for i, item := range seq.Content {
		if item.Kind != yaml.MappingNode {
			continue
		}
		for j := 0; j+1 < len(item.Content); j += 2 {
			if item.Content[j].Value != "id" {
				continue
			}
			if v, err := strconv.ParseInt(item.Content[j+1].Value, 10, 64); err == nil && v == id {
				return i
			}
		}
	}
	return -1
}

func scalar(tag, value string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: tag, Value: value}
}
