package repository

import (
	"context"
	"sync"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// fakeCollection is an in-memory Collection. Documents are stored after a
// BSON round trip so values come back with the types the driver decodes.
type fakeCollection struct {
	mu   sync.Mutex
	docs []bson.M

	// errs injects a failure per method name.
	errs map[string]error

	updates     int
	lastUpdate  interface{}
	lastReturns options.ReturnDocument
}

var _ Collection = (*fakeCollection)(nil)

func newFakeCollection() *fakeCollection {
	return &fakeCollection{errs: map[string]error{}}
}

func (f *fakeCollection) source() CollectionSource {
	return func(ctx context.Context) (Collection, error) {
		return f, nil
	}
}

func roundTrip(doc interface{}) bson.M {
	raw, err := bson.Marshal(doc)
	if err != nil {
		panic(err)
	}
	var out bson.M
	if err := bson.Unmarshal(raw, &out); err != nil {
		panic(err)
	}
	return out
}

func (f *fakeCollection) indexOf(filter interface{}) int {
	oid := filter.(bson.M)["_id"].(primitive.ObjectID)
	for i, doc := range f.docs {
		if doc["_id"] == oid {
			return i
		}
	}
	return -1
}

func (f *fakeCollection) Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) (*mongo.Cursor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.errs["Find"]; err != nil {
		return nil, err
	}

	items := make([]interface{}, 0, len(f.docs))
	for _, doc := range f.docs {
		items = append(items, doc)
	}
	return mongo.NewCursorFromDocuments(items, nil, nil)
}

func (f *fakeCollection) FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) *mongo.SingleResult {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.errs["FindOne"]; err != nil {
		return mongo.NewSingleResultFromDocument(bson.D{}, err, nil)
	}

	i := f.indexOf(filter)
	if i < 0 {
		return mongo.NewSingleResultFromDocument(bson.D{}, mongo.ErrNoDocuments, nil)
	}
	return mongo.NewSingleResultFromDocument(f.docs[i], nil, nil)
}

func (f *fakeCollection) InsertOne(ctx context.Context, document interface{}, opts ...*options.InsertOneOptions) (*mongo.InsertOneResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.errs["InsertOne"]; err != nil {
		return nil, err
	}

	doc := roundTrip(document)
	if _, ok := doc["_id"]; !ok {
		doc["_id"] = primitive.NewObjectID()
	}
	f.docs = append(f.docs, doc)
	return &mongo.InsertOneResult{InsertedID: doc["_id"]}, nil
}

func (f *fakeCollection) FindOneAndUpdate(ctx context.Context, filter interface{}, update interface{}, opts ...*options.FindOneAndUpdateOptions) *mongo.SingleResult {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.updates++
	f.lastUpdate = update
	for _, o := range opts {
		if o.ReturnDocument != nil {
			f.lastReturns = *o.ReturnDocument
		}
	}

	if err := f.errs["FindOneAndUpdate"]; err != nil {
		return mongo.NewSingleResultFromDocument(bson.D{}, err, nil)
	}

	i := f.indexOf(filter)
	if i < 0 {
		return mongo.NewSingleResultFromDocument(bson.D{}, mongo.ErrNoDocuments, nil)
	}

	set := roundTrip(update.(bson.M)["$set"])
	for k, v := range set {
		f.docs[i][k] = v
	}
	return mongo.NewSingleResultFromDocument(f.docs[i], nil, nil)
}

func (f *fakeCollection) DeleteOne(ctx context.Context, filter interface{}, opts ...*options.DeleteOptions) (*mongo.DeleteResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.errs["DeleteOne"]; err != nil {
		return nil, err
	}

	i := f.indexOf(filter)
	if i < 0 {
		return &mongo.DeleteResult{DeletedCount: 0}, nil
	}
	f.docs = append(f.docs[:i], f.docs[i+1:]...)
	return &mongo.DeleteResult{DeletedCount: 1}, nil
}
