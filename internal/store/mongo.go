package store

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsoncodec"
	"go.mongodb.org/mongo-driver/bson/bsonrw"
	"go.mongodb.org/mongo-driver/bson/bsontype"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/sudo-init-do/homeswift/internal/model"
)

var decimalType = reflect.TypeOf(decimal.Decimal{})

// MongoRegistry returns the default bson registry plus a codec that stores
// decimal.Decimal as its exact string form.
func MongoRegistry() *bsoncodec.Registry {
	reg := bson.NewRegistry()
	reg.RegisterTypeEncoder(decimalType, bsoncodec.ValueEncoderFunc(encodeDecimal))
	reg.RegisterTypeDecoder(decimalType, bsoncodec.ValueDecoderFunc(decodeDecimal))
	return reg
}

func encodeDecimal(_ bsoncodec.EncodeContext, vw bsonrw.ValueWriter, val reflect.Value) error {
	d, ok := val.Interface().(decimal.Decimal)
	if !ok {
		return bsoncodec.ValueEncoderError{Name: "encodeDecimal", Types: []reflect.Type{decimalType}, Received: val}
	}
	return vw.WriteString(d.String())
}

func decodeDecimal(_ bsoncodec.DecodeContext, vr bsonrw.ValueReader, val reflect.Value) error {
	var s string
	switch vr.Type() {
	case bsontype.String:
		v, err := vr.ReadString()
		if err != nil {
			return err
		}
		s = v
	case bsontype.Null:
		if err := vr.ReadNull(); err != nil {
			return err
		}
		s = "0"
	default:
		return fmt.Errorf("cannot decode %v into decimal", vr.Type())
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return err
	}
	val.Set(reflect.ValueOf(d))
	return nil
}

// MongoStore implements Store on MongoDB. Integer ids come from a counters collection.
type MongoStore struct {
	client     *mongo.Client
	requests   *mongo.Collection
	providers  *mongo.Collection
	users      *mongo.Collection
	complaints *mongo.Collection
	counters   *mongo.Collection
}

func NewMongoStore(client *mongo.Client, dbName string) *MongoStore {
	db := client.Database(dbName)
	return &MongoStore{
		client:     client,
		requests:   db.Collection("service_requests"),
		providers:  db.Collection("providers"),
		users:      db.Collection("users"),
		complaints: db.Collection("complaints"),
		counters:   db.Collection("counters"),
	}
}

func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.requests.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "assigned_provider_id", Value: 1}}},
		{Keys: bson.D{{Key: "customer_email", Value: 1}}},
	})
	if err != nil {
		return err
	}
	if _, err := s.users.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true),
	}); err != nil {
		return err
	}
	if _, err := s.providers.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true),
	}); err != nil {
		return err
	}
	_, err = s.complaints.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "status", Value: 1}, {Key: "created_at", Value: -1}},
	})
	return err
}

func (s *MongoStore) Ping(ctx context.Context) error { return s.client.Ping(ctx, nil) }

func (s *MongoStore) Close(ctx context.Context) error { return s.client.Disconnect(ctx) }

func (s *MongoStore) nextID(ctx context.Context, name string) (int64, error) {
	var out struct {
		Seq int64 `bson:"seq"`
	}
	err := s.counters.FindOneAndUpdate(ctx,
		bson.M{"_id": name},
		bson.M{"$inc": bson.M{"seq": 1}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&out)
	if err != nil {
		return 0, fmt.Errorf("next %s id: %w", name, err)
	}
	return out.Seq, nil
}

func withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, 5*time.Second)
}

// Requests

func (s *MongoStore) CreateRequest(ctx context.Context, r *model.ServiceRequest) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	if r.RequestID == 0 {
		id, err := s.nextID(ctx, "service_requests")
		if err != nil {
			return err
		}
		r.RequestID = id
	}
	now := time.Now().UTC()
	if r.CreatedAt.IsZero() {
		r.CreatedAt = now
	}
	r.UpdatedAt = now
	if r.Version == 0 {
		r.Version = 1
	}
	if r.Status == "" {
		r.Status = model.StatusPending
	}
	if r.Priority == "" {
		r.Priority = "normal"
	}
	if r.InterestedProviders == nil {
		r.InterestedProviders = []model.InterestedProvider{}
	}
	if r.AuditLog == nil {
		r.AuditLog = []model.AuditEntry{}
	}
	if _, err := s.requests.InsertOne(ctx, r); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("insert service request: %w", err)
	}
	return nil
}

func (s *MongoStore) GetRequest(ctx context.Context, id int64) (*model.ServiceRequest, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var r model.ServiceRequest
	err := s.requests.FindOne(ctx, bson.M{"_id": id}).Decode(&r)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	normalizeLists(&r)
	return &r, nil
}

func normalizeLists(r *model.ServiceRequest) {
	if r.InterestedProviders == nil {
		r.InterestedProviders = []model.InterestedProvider{}
	}
	if r.AuditLog == nil {
		r.AuditLog = []model.AuditEntry{}
	}
}

func (s *MongoStore) ListRequests(ctx context.Context, f RequestFilter) ([]model.ServiceRequest, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	filter := bson.D{}
	if len(f.Statuses) > 0 {
		filter = append(filter, bson.E{Key: "status", Value: bson.M{"$in": statusStrings(f.Statuses)}})
	}
	if f.ProviderID != nil {
		filter = append(filter, bson.E{Key: "assigned_provider_id", Value: *f.ProviderID})
	}
	if f.CustomerEmail != "" {
		filter = append(filter, bson.E{Key: "customer_email", Value: f.CustomerEmail})
	}
	if f.UnassignedOnly {
		filter = append(filter, bson.E{Key: "assigned_provider_id", Value: nil})
	}

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}})
	if f.Limit > 0 {
		opts.SetLimit(int64(f.Limit))
	}
	cur, err := s.requests.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	out := make([]model.ServiceRequest, 0)
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	for i := range out {
		normalizeLists(&out[i])
	}
	return out, nil
}

func literal(v any) bson.D {
	return bson.D{{Key: "$literal", Value: v}}
}

// UpdateIf issues one FindOneAndUpdate whose filter carries the guard. The
// update is a pipeline so timestamps can keep their first value and the audit
// log can be appended in the same statement.
func (s *MongoStore) UpdateIf(ctx context.Context, id int64, g Guard, p Patch) (*model.ServiceRequest, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	filter := bson.D{{Key: "_id", Value: id}}
	if len(g.Statuses) > 0 {
		filter = append(filter, bson.E{Key: "status", Value: bson.M{"$in": statusStrings(g.Statuses)}})
	}
	if g.Unassigned {
		filter = append(filter, bson.E{Key: "assigned_provider_id", Value: nil})
	}
	if g.Version != 0 {
		filter = append(filter, bson.E{Key: "version", Value: g.Version})
	}

	set := bson.D{
		{Key: "version", Value: bson.D{{Key: "$add", Value: bson.A{"$version", 1}}}},
		{Key: "updated_at", Value: literal(time.Now().UTC())},
	}
	put := func(key string, v any) { set = append(set, bson.E{Key: key, Value: literal(v)}) }
	keepFirst := func(key string, t *time.Time) {
		if t == nil {
			return
		}
		set = append(set, bson.E{Key: key, Value: bson.D{{Key: "$ifNull", Value: bson.A{"$" + key, literal(t.UTC())}}}})
	}

	if p.Status != nil {
		put("status", string(*p.Status))
	}
	if a := p.Assign; a != nil {
		put("assigned_provider_id", a.ProviderID)
		put("provider_name", a.Name)
		put("provider_email", a.Email)
		put("provider_phone", a.Phone)
		if a.AssignedBy != "" {
			put("assigned_by", a.AssignedBy)
		}
	}
	if p.SetInterested {
		list := p.Interested
		if list == nil {
			list = []model.InterestedProvider{}
		}
		put("interested_providers", list)
	}
	if len(p.Audit) > 0 {
		set = append(set, bson.E{Key: "audit_log", Value: bson.D{{Key: "$concatArrays", Value: bson.A{
			bson.D{{Key: "$ifNull", Value: bson.A{"$audit_log", bson.A{}}}},
			literal(p.Audit),
		}}}})
	}
	keepFirst("confirmed_at", p.ConfirmedAt)
	keepFirst("assigned_at", p.AssignedAt)
	keepFirst("completed_at", p.CompletedAt)
	if a := p.Admin; !a.Empty() {
		if a.Priority != nil {
			put("priority", *a.Priority)
		}
		if a.AdminNotes != nil {
			put("admin_notes", *a.AdminNotes)
		}
		if a.PaymentMethod != nil {
			put("payment_method", *a.PaymentMethod)
		}
		if a.ProofOfPaymentURL != nil {
			put("proof_of_payment_url", *a.ProofOfPaymentURL)
		}
		if a.CustomerPaymentReceived != nil {
			put("customer_payment_received", *a.CustomerPaymentReceived)
		}
		if a.ProviderPaymentMade != nil {
			put("provider_payment_made", *a.ProviderPaymentMade)
		}
		if a.CommissionCollected != nil {
			put("commission_collected", *a.CommissionCollected)
		}
	}

	update := mongo.Pipeline{{{Key: "$set", Value: set}}}
	var out model.ServiceRequest
	err := s.requests.FindOneAndUpdate(ctx, filter, update,
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&out)
	if err == nil {
		normalizeLists(&out)
		return &out, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("update service request %d: %w", id, err)
	}

	n, err := s.requests.CountDocuments(ctx, bson.M{"_id": id})
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, ErrNotFound
	}
	return nil, ErrGuardFailed
}

func (s *MongoStore) RequestStats(ctx context.Context) (*model.RequestStats, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	st := &model.RequestStats{ByStatus: make(map[model.Status]int)}
	cur, err := s.requests.Aggregate(ctx, mongo.Pipeline{
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$status"},
			{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
	})
	if err != nil {
		return nil, err
	}
	var groups []struct {
		Status string `bson:"_id"`
		Count  int    `bson:"count"`
	}
	if err := cur.All(ctx, &groups); err != nil {
		return nil, err
	}
	for _, g := range groups {
		st.ByStatus[model.Status(g.Status)] = g.Count
		st.Total += g.Count
	}

	// Money is stored as strings, so sum it here rather than in $group.
	moneyCur, err := s.requests.Find(ctx,
		bson.M{"status": string(model.StatusCompleted)},
		options.Find().SetProjection(bson.M{
			"total_customer_paid": 1, "total_provider_payout": 1, "total_commission_earned": 1,
		}),
	)
	if err != nil {
		return nil, err
	}
	defer moneyCur.Close(ctx)
	for moneyCur.Next(ctx) {
		var m struct {
			Paid       decimal.Decimal `bson:"total_customer_paid"`
			Payout     decimal.Decimal `bson:"total_provider_payout"`
			Commission decimal.Decimal `bson:"total_commission_earned"`
		}
		if err := moneyCur.Decode(&m); err != nil {
			return nil, err
		}
		st.Revenue = st.Revenue.Add(m.Paid)
		st.Payouts = st.Payouts.Add(m.Payout)
		st.Commission = st.Commission.Add(m.Commission)
	}
	return st, moneyCur.Err()
}

// Providers

func (s *MongoStore) GetProvider(ctx context.Context, id int64) (*model.Provider, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var p model.Provider
	err := s.providers.FindOne(ctx, bson.M{"_id": id}).Decode(&p)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *MongoStore) ListProviders(ctx context.Context, activeOnly bool) ([]model.Provider, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	filter := bson.M{}
	if activeOnly {
		filter["active"] = true
	}
	cur, err := s.providers.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	out := make([]model.Provider, 0)
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *MongoStore) CreateProvider(ctx context.Context, p *model.Provider) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	if p.ID == 0 {
		id, err := s.nextID(ctx, "providers")
		if err != nil {
			return err
		}
		p.ID = id
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	if p.ServiceAreas == nil {
		p.ServiceAreas = []string{}
	}
	if _, err := s.providers.InsertOne(ctx, p); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

// CreateProviderAccount inserts the provider then its user, removing the
// provider again if the user insert fails.
func (s *MongoStore) CreateProviderAccount(ctx context.Context, p *model.Provider, u *model.User) error {
	if err := s.CreateProvider(ctx, p); err != nil {
		return err
	}
	u.ProviderID = &p.ID
	u.Role = model.RoleProvider
	if err := s.CreateUser(ctx, u); err != nil {
		ctx, cancel := withTimeout(context.WithoutCancel(ctx))
		defer cancel()
		_, _ = s.providers.DeleteOne(ctx, bson.M{"_id": p.ID})
		return err
	}
	return nil
}

// Users

func (s *MongoStore) CreateUser(ctx context.Context, u *model.User) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	if u.Role == "" {
		u.Role = model.RoleCustomer
	}
	now := time.Now().UTC()
	u.CreatedAt, u.UpdatedAt = now, now
	if _, err := s.users.InsertOne(ctx, u); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

func (s *MongoStore) findUser(ctx context.Context, filter bson.M) (*model.User, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var u model.User
	err := s.users.FindOne(ctx, filter).Decode(&u)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *MongoStore) GetUser(ctx context.Context, id string) (*model.User, error) {
	return s.findUser(ctx, bson.M{"_id": id})
}

func (s *MongoStore) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	return s.findUser(ctx, bson.M{"email": email})
}

func (s *MongoStore) ListUsers(ctx context.Context) ([]model.User, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	cur, err := s.users.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	out := make([]model.User, 0)
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *MongoStore) UpdateUser(ctx context.Context, id string, p UserPatch) (*model.User, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	set := bson.M{"updated_at": time.Now().UTC()}
	if p.Name != nil {
		set["name"] = *p.Name
	}
	if p.Email != nil {
		set["email"] = *p.Email
	}
	if p.Phone != nil {
		set["phone"] = *p.Phone
	}
	if p.Role != nil {
		set["role"] = string(*p.Role)
	}
	var u model.User
	err := s.users.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&u)
	switch {
	case errors.Is(err, mongo.ErrNoDocuments):
		return nil, ErrNotFound
	case mongo.IsDuplicateKeyError(err):
		return nil, ErrDuplicate
	case err != nil:
		return nil, err
	}
	return &u, nil
}

func (s *MongoStore) DeleteUser(ctx context.Context, id string) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	res, err := s.users.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoStore) setUserField(ctx context.Context, filter bson.M, field string, v any) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	res, err := s.users.UpdateOne(ctx, filter, bson.M{"$set": bson.M{field: v, "updated_at": time.Now().UTC()}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoStore) SetRoleByEmail(ctx context.Context, email string, role model.Role) error {
	return s.setUserField(ctx, bson.M{"email": email}, "role", string(role))
}

func (s *MongoStore) SetPassword(ctx context.Context, id, hash string) error {
	return s.setUserField(ctx, bson.M{"_id": id}, "password_hash", hash)
}

func (s *MongoStore) CountUsers(ctx context.Context) (int, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()
	n, err := s.users.CountDocuments(ctx, bson.M{})
	return int(n), err
}

// Complaints

func (s *MongoStore) CreateComplaint(ctx context.Context, c *model.Complaint) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	id, err := s.nextID(ctx, "complaints")
	if err != nil {
		return err
	}
	c.ID = id
	if c.Status == "" {
		c.Status = model.ComplaintPending
	}
	now := time.Now().UTC()
	c.CreatedAt, c.UpdatedAt = now, now
	_, err = s.complaints.InsertOne(ctx, c)
	return err
}

func (s *MongoStore) ListComplaints(ctx context.Context, status model.ComplaintStatus) ([]model.Complaint, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	filter := bson.M{}
	if status != "" {
		filter["status"] = string(status)
	}
	cur, err := s.complaints.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	out := make([]model.Complaint, 0)
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *MongoStore) UpdateComplaint(ctx context.Context, id int64, p ComplaintPatch) (*model.Complaint, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	now := time.Now().UTC()
	set := bson.D{{Key: "updated_at", Value: literal(now)}}
	if p.Status != nil {
		set = append(set, bson.E{Key: "status", Value: literal(string(*p.Status))})
		if *p.Status == model.ComplaintResolved || *p.Status == model.ComplaintClosed {
			set = append(set, bson.E{Key: "resolved_at", Value: bson.D{{Key: "$ifNull", Value: bson.A{"$resolved_at", literal(now)}}}})
		}
	}
	if p.AdminNotes != nil {
		set = append(set, bson.E{Key: "admin_notes", Value: literal(*p.AdminNotes)})
	}

	var c model.Complaint
	err := s.complaints.FindOneAndUpdate(ctx, bson.M{"_id": id}, mongo.Pipeline{{{Key: "$set", Value: set}}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&c)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}
