package content

import (
	"context"
	"slices"

	"schoolhub/internal/apperr"
	"schoolhub/internal/constants"
	"schoolhub/internal/db"
	"schoolhub/internal/models"
	"schoolhub/internal/store"
)

// Posts returns the feed, most recent first.
func (m *Manager) Posts(ctx context.Context, actorID string) ([]models.Post, error) {
	if _, err := m.actor(ctx, actorID); err != nil {
		return nil, err
	}
	var posts []models.Post
	if err := m.store.ReadAll(ctx, store.Posts, &posts); err != nil {
		return nil, err
	}
	for i := range posts {
		posts[i].Normalize()
	}
	return nonNilSlice(posts), nil
}

// AddPost prepends a post by the actor. An empty title defaults to
// "<name>'s Post".
func (m *Manager) AddPost(ctx context.Context, actorID, content, title string) (*models.Post, error) {
	post, err := m.addPost(ctx, actorID, content, title)
	observe("add_post", err)
	return post, err
}

func (m *Manager) addPost(ctx context.Context, actorID, content, title string) (*models.Post, error) {
	content, err := m.cleanText("content", content, constants.MaxPostLength, true)
	if err != nil {
		return nil, err
	}
	title, err = m.cleanText("title", title, constants.MaxTitleLength, false)
	if err != nil {
		return nil, err
	}
	id, err := db.GenerateID("post")
	if err != nil {
		return nil, err
	}

	var post models.Post
	err = m.store.Update(ctx, func(tx *store.Tx) error {
		var users []models.User
		if err := tx.Load(store.Users, &users); err != nil {
			return err
		}
		_, user, err := findActor(users, actorID)
		if err != nil {
			return err
		}

		if title == "" {
			title = user.Name + "'s Post"
		}
		post = models.Post{
			ID:        id,
			Title:     title,
			Content:   content,
			AuthorID:  user.ID,
			Author:    user.Name,
			Timestamp: m.timestamp(),
		}
		post.Normalize()

		var posts []models.Post
		if err := tx.Load(store.Posts, &posts); err != nil {
			return err
		}
		return tx.Stage(store.Posts, slices.Insert(posts, 0, post))
	}, store.Posts, store.Users)
	if err != nil {
		return nil, err
	}
	return &post, nil
}

// LikePost toggles the actor's like on a post.
func (m *Manager) LikePost(ctx context.Context, actorID, postID string) (*models.Post, error) {
	var post models.Post
	err := m.updatePost(ctx, actorID, postID, func(p *models.Post, user *models.User) error {
		if liked := slices.Contains(p.LikedBy, user.ID); liked {
			p.LikedBy, _ = models.RemoveID(p.LikedBy, user.ID)
		} else {
			p.LikedBy, _ = models.AddID(p.LikedBy, user.ID)
		}
		p.Normalize()
		post = *p
		return nil
	})
	observe("like_post", err)
	if err != nil {
		return nil, err
	}
	return &post, nil
}

// AddComment appends a comment to a post. Existing comments are never
// reordered.
func (m *Manager) AddComment(ctx context.Context, actorID, postID, content string) (*models.Comment, error) {
	content, err := m.cleanText("comment", content, constants.MaxCommentLength, true)
	if err != nil {
		observe("add_comment", err)
		return nil, err
	}
	id, err := db.GenerateID("comment")
	if err != nil {
		return nil, err
	}

	var comment models.Comment
	err = m.updatePost(ctx, actorID, postID, func(p *models.Post, user *models.User) error {
		comment = models.Comment{
			ID:        id,
			Content:   content,
			AuthorID:  user.ID,
			Author:    user.Name,
			Timestamp: m.timestamp(),
		}
		p.Comments = append(p.Comments, comment)
		return nil
	})
	observe("add_comment", err)
	if err != nil {
		return nil, err
	}
	return &comment, nil
}

func (m *Manager) updatePost(ctx context.Context, actorID, postID string, fn func(p *models.Post, user *models.User) error) error {
	return m.store.Update(ctx, func(tx *store.Tx) error {
		var users []models.User
		if err := tx.Load(store.Users, &users); err != nil {
			return err
		}
		_, user, err := findActor(users, actorID)
		if err != nil {
			return err
		}

		var posts []models.Post
		if err := tx.Load(store.Posts, &posts); err != nil {
			return err
		}
		idx := slices.IndexFunc(posts, func(p models.Post) bool { return p.ID == postID })
		if postID == "" || idx < 0 {
			return apperr.NotFound("post not found")
		}
		posts[idx].Normalize()
		if err := fn(&posts[idx], user); err != nil {
			return err
		}
		return tx.Stage(store.Posts, posts)
	}, store.Posts, store.Users)
}

func nonNilSlice[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
