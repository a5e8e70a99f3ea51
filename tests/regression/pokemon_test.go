package regression

import (
	"net/http"
	"testing"
)

// createPokemon 以管理员身份创建宝可梦，返回其 ID
func createPokemon(t *testing.T, admin string, body map[string]interface{}) string {
	t.Helper()
	w := makeRequest("POST", "/api/pokemons", body, withBearer(admin))
	if w.Code != http.StatusCreated {
		t.Fatalf("create pokemon: status %d body %s", w.Code, w.Body.String())
	}
	resp := parseJSONResponse(t, w)
	return resp["data"].(map[string]interface{})["id"].(string)
}

func TestPokemonAdminCRUD(t *testing.T) {
	admin := adminToken(t, "oak@pokemon-crud.test")
	user := signupUser(t, "Gary", "gary@pokemon-crud.test")

	// 写操作需要管理员权限
	body := map[string]interface{}{
		"name": "Bulbasaur", "type": "grass",
		"hp": 45, "attack": 49, "defense": 49, "speed": 45,
	}
	if w := makeRequest("POST", "/api/pokemons", body); w.Code != http.StatusUnauthorized {
		t.Errorf("anonymous create status = %d, want 401", w.Code)
	}
	if w := makeRequest("POST", "/api/pokemons", body, withBearer(user)); w.Code != http.StatusForbidden {
		t.Errorf("non-admin create status = %d, want 403", w.Code)
	}

	id := createPokemon(t, admin, body)

	// 公开读取
	w := makeRequest("GET", "/api/pokemons/"+id, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get status = %d", w.Code)
	}
	data := parseJSONResponse(t, w)["data"].(map[string]interface{})
	if data["name"] != "Bulbasaur" || data["type"] != "grass" {
		t.Errorf("unexpected entity: %v", data)
	}

	// 局部更新只动给出的字段
	w = makeRequest("PATCH", "/api/pokemons/"+id, map[string]interface{}{"attack": 62}, withBearer(admin))
	if w.Code != http.StatusOK {
		t.Fatalf("patch status = %d body %s", w.Code, w.Body.String())
	}
	data = parseJSONResponse(t, w)["data"].(map[string]interface{})
	if data["attack"].(float64) != 62 {
		t.Errorf("attack = %v, want 62", data["attack"])
	}
	if data["name"] != "Bulbasaur" {
		t.Errorf("patch must not clear name, got %v", data["name"])
	}

	// 删除后再取 404
	if w := makeRequest("DELETE", "/api/pokemons/"+id, nil, withBearer(user)); w.Code != http.StatusForbidden {
		t.Errorf("non-admin delete status = %d, want 403", w.Code)
	}
	if w := makeRequest("DELETE", "/api/pokemons/"+id, nil, withBearer(admin)); w.Code != http.StatusNoContent {
		t.Errorf("delete status = %d, want 204", w.Code)
	}
	if w := makeRequest("GET", "/api/pokemons/"+id, nil); w.Code != http.StatusNotFound {
		t.Errorf("get after delete status = %d, want 404", w.Code)
	}
	if w := makeRequest("DELETE", "/api/pokemons/"+id, nil, withBearer(admin)); w.Code != http.StatusNotFound {
		t.Errorf("repeat delete status = %d, want 404", w.Code)
	}
}

func TestPokemonListQuery(t *testing.T) {
	admin := adminToken(t, "oak@pokemon-query.test")

	specs := []map[string]interface{}{
		{"name": "QCharmander", "type": "qfire", "attack": 52, "speed": 65},
		{"name": "QCharmeleon", "type": "qfire", "attack": 64, "speed": 80},
		{"name": "QSquirtle", "type": "qwater", "attack": 48, "speed": 43},
	}
	for _, s := range specs {
		createPokemon(t, admin, s)
	}

	// 等值过滤 + 结果计数
	w := makeRequest("GET", "/api/pokemons?type=qfire", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list status = %d", w.Code)
	}
	resp := parseJSONResponse(t, w)
	if int(resp["results"].(float64)) != 2 {
		t.Fatalf("results = %v, want 2", resp["results"])
	}

	// 比较过滤 + 排序
	w = makeRequest("GET", "/api/pokemons?type=qfire&attack_gte=60&sort=-attack", nil)
	resp = parseJSONResponse(t, w)
	items := resp["data"].([]interface{})
	if len(items) != 1 {
		t.Fatalf("filtered items = %d, want 1", len(items))
	}
	if items[0].(map[string]interface{})["name"] != "QCharmeleon" {
		t.Errorf("unexpected item: %v", items[0])
	}

	// 分页
	w = makeRequest("GET", "/api/pokemons?type=qfire&sort=name&limit=1&page=2", nil)
	resp = parseJSONResponse(t, w)
	items = resp["data"].([]interface{})
	if len(items) != 1 || items[0].(map[string]interface{})["name"] != "QCharmeleon" {
		t.Errorf("page 2 items = %v", items)
	}
}

func TestPokemonValidation(t *testing.T) {
	admin := adminToken(t, "oak@pokemon-validation.test")

	w := makeRequest("POST", "/api/pokemons", map[string]interface{}{"type": "ghost"}, withBearer(admin))
	if w.Code != http.StatusBadRequest {
		t.Errorf("nameless create status = %d, want 400", w.Code)
	}
	resp := parseJSONResponse(t, w)
	if resp["status"] != "fail" {
		t.Errorf("status field = %v, want fail", resp["status"])
	}
}
