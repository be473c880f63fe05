package repository

import (
	"context"

	"cloud.google.com/go/firestore"

	"recipehub/internal/domain/entity"
	"recipehub/internal/domain/service"
	"recipehub/pkg/errors"
)

// firestoreDirectory reads display data owned by other parts of the app:
// profiles in users/{id} and recipe titles in recipes/{id}.
type firestoreDirectory struct {
	client *firestore.Client
}

type recipeTitle struct {
	Title string `firestore:"title"`
}

func NewFirestoreProfileProvider(client *firestore.Client) service.ProfileProvider {
	return &firestoreDirectory{client: client}
}

func NewFirestorePostProvider(client *firestore.Client) service.PostProvider {
	return &firestoreDirectory{client: client}
}

func (r *firestoreDirectory) GetProfile(ctx context.Context, userID string) (*entity.Profile, error) {
	doc, err := r.client.Collection(usersCollection).Doc(userID).Get(ctx)
	if err != nil {
		if isNotFound(err) {
			return nil, errors.NotFound("User", err)
		}
		return nil, errors.Internal("Failed to get user profile", err)
	}

	var profile entity.Profile
	if err := doc.DataTo(&profile); err != nil {
		return nil, errors.Internal("Failed to parse user profile", err)
	}
	profile.UserID = userID
	return &profile, nil
}

func (r *firestoreDirectory) GetPostTitle(ctx context.Context, postID string) (string, error) {
	doc, err := r.client.Collection(recipesCollection).Doc(postID).Get(ctx)
	if err != nil {
		if isNotFound(err) {
			return "", errors.NotFound("Recipe", err)
		}
		return "", errors.Internal("Failed to get recipe", err)
	}

	var recipe recipeTitle
	if err := doc.DataTo(&recipe); err != nil {
		return "", errors.Internal("Failed to parse recipe", err)
	}
	return recipe.Title, nil
}
