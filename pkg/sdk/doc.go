// Package biorag provides an embeddable Go client for the biorag
// retrieval-augmented query pipeline over biospecimen records.
//
// The client runs the full pipeline in-process: it embeds the question,
// finds the most similar records by cosine similarity, and produces a
// grounded answer with the retrieved records as sources.
//
//	client, _ := biorag.New(ctx,
//	    biorag.WithRedis("localhost:6379", ""),
//	    biorag.WithOpenAI(os.Getenv("OPENAI_API_KEY"), ""),
//	)
//	defer client.Close()
//
//	_ = client.Ingest(ctx, biorag.Record{
//	    ID:      "rec-1",
//	    Content: "Frozen lung adenocarcinoma specimen ...",
//	    Metadata: map[string]string{"sample_type": "Primary Tumor"},
//	})
//
//	res, _ := client.Query(ctx, "Which lung samples are frozen?", 3)
//	fmt.Println(res.Answer)
//
// For tests and small corpora the in-memory store works without any
// external database:
//
//	client, _ := biorag.New(ctx, biorag.WithMemory(), biorag.WithEmbedder(myEmbedder))
package biorag
